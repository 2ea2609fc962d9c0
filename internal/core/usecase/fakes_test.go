package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
)

var errModelDown = errors.New("model down")

// fakeGenerator routes each prompt to a configurable responder and records
// every prompt it saw.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) Complete(_ context.Context, prompt string, _ ports.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.respond == nil {
		return "", errModelDown
	}
	return f.respond(prompt)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeEmbedder returns per-text vectors from a lookup table; texts without an
// entry get the default vector. A nil default simulates embedding failure.
type fakeEmbedder struct {
	vectors      map[string][]float32
	defaultVec   []float32
	embedErr     error
	embedAllFunc func(texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.embedAllFunc != nil {
		return f.embedAllFunc(texts)
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.lookup(text))
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.lookup(text), nil
}

func (f *fakeEmbedder) lookup(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.defaultVec
}

// fakeSearcher dispatches dense searches by the first vector component and
// lexical searches by query text.
type fakeSearcher struct {
	mu          sync.Mutex
	denseCalls  int
	byVector    map[float32][]domain.SearchResultItem
	denseErr    error
	lexical     []domain.SearchResultItem
	lexicalErr  error
	lexicalSeen []string
}

func (f *fakeSearcher) Search(_ context.Context, _ domain.Course, queryVector []float32, _ int) ([]domain.SearchResultItem, error) {
	f.mu.Lock()
	f.denseCalls++
	f.mu.Unlock()

	if f.denseErr != nil {
		return nil, f.denseErr
	}
	if len(queryVector) == 0 {
		return nil, nil
	}
	return cloneItems(f.byVector[queryVector[0]]), nil
}

func (f *fakeSearcher) SearchLexical(_ context.Context, _ domain.Course, queryText string, _ int) ([]domain.SearchResultItem, error) {
	f.mu.Lock()
	f.lexicalSeen = append(f.lexicalSeen, queryText)
	f.mu.Unlock()

	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return cloneItems(f.lexical), nil
}

func cloneItems(items []domain.SearchResultItem) []domain.SearchResultItem {
	out := make([]domain.SearchResultItem, len(items))
	copy(out, items)
	return out
}

type fakeReviewStore struct {
	mu       sync.Mutex
	created  []domain.AnswerReview
	saved    map[string]domain.Evaluation
	statuses map[string]domain.ReviewStatus
	stored   *domain.AnswerReview

	createErr error
	getErr    error
	saveErr   error
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{
		saved:    make(map[string]domain.Evaluation),
		statuses: make(map[string]domain.ReviewStatus),
	}
}

func (f *fakeReviewStore) Create(_ context.Context, review *domain.AnswerReview) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, *review)
	f.mu.Unlock()
	return nil
}

func (f *fakeReviewStore) GetByID(_ context.Context, _ string) (*domain.AnswerReview, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stored, nil
}

func (f *fakeReviewStore) SaveEvaluation(_ context.Context, id string, eval domain.Evaluation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.saved[id] = eval
	f.mu.Unlock()
	return nil
}

func (f *fakeReviewStore) UpdateStatus(_ context.Context, id string, status domain.ReviewStatus, _ string) error {
	f.mu.Lock()
	f.statuses[id] = status
	f.mu.Unlock()
	return nil
}

type fakeReviewQueue struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (f *fakeReviewQueue) PublishReviewRequested(_ context.Context, reviewID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	f.published = append(f.published, reviewID)
	f.mu.Unlock()
	return nil
}

func (f *fakeReviewQueue) SubscribeReviewRequested(context.Context, func(context.Context, string) error) error {
	return nil
}
