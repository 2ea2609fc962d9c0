package bootstrap

import (
	"context"
	"fmt"

	"github.com/flowmindlabs/flowmind-rag/internal/config"
	"github.com/flowmindlabs/flowmind-rag/internal/core/domain"
	"github.com/flowmindlabs/flowmind-rag/internal/core/ports"
	"github.com/flowmindlabs/flowmind-rag/internal/core/usecase"
	"github.com/flowmindlabs/flowmind-rag/internal/infrastructure/llm/ollama"
	"github.com/flowmindlabs/flowmind-rag/internal/infrastructure/queue/nats"
	"github.com/flowmindlabs/flowmind-rag/internal/infrastructure/repository/postgres"
	"github.com/flowmindlabs/flowmind-rag/internal/infrastructure/resilience"
	"github.com/flowmindlabs/flowmind-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Reviews  ports.ReviewStore
	SearchUC ports.SearchService
	AnswerUC ports.AnswerService
	ReviewUC ports.ReviewProcessor
	Judge    *usecase.ResponseJudge

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	reviews := postgres.NewReviewRepository(db)
	if err := reviews.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.MessagingConfig(), nats.ClassifyError),
	})
	if err != nil {
		return nil, fmt.Errorf("init review queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            cfg.LLMTimeout,
		RatePerSecond:      cfg.LLMRatePerSecond,
		RateBurst:          cfg.LLMRateBurst,
		ResilienceExecutor: resilience.NewExecutor(resilience.ModelCallConfig(), ollama.ClassifyError),
	})
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, map[domain.Course]string{
		domain.CourseNodeJS: cfg.QdrantCollectionNodeJS,
		domain.CoursePython: cfg.QdrantCollectionPython,
	})

	searchCfg := usecase.SearchConfig{
		TopN:                  cfg.SearchTopN,
		RerankMinResults:      cfg.RerankMinResults,
		FallbackLimit:         cfg.FallbackLimit,
		FallbackConfidence:    cfg.FallbackConfidence,
		HydeBoost:             cfg.HydeBoost,
		HybridSemanticBoost:   cfg.HybridSemanticBoost,
		HybridOverlapBoost:    cfg.HybridOverlapBoost,
		EmbedDim:              cfg.EmbedDim,
		KeywordLexicalEnabled: cfg.KeywordLexicalEnabled,
		EnhancedHydeEnabled:   cfg.EnhancedHydeEnabled,
	}

	rewriter := usecase.NewQueryRewriter(generator)
	translator := usecase.NewQueryDecisionTranslator()
	hyde := usecase.NewHydeEngine(generator, embedder, vectorDB, searchCfg)
	profiles := usecase.LoadWeightProfiles(cfg.SearchWeightsPath)
	fusion := usecase.NewMultiVectorFusion(generator, embedder, vectorDB, searchCfg, profiles, cfg.HypoCacheEntries)
	engine := usecase.NewSearchEngine(rewriter, translator, hyde, fusion, embedder, vectorDB, searchCfg)

	judge := usecase.NewResponseJudge(generator, cfg.JudgeThreshold)
	answerCache := usecase.NewMemoCache[domain.Answer](cfg.CacheTTL, cfg.CacheMaxEntries)
	answerUC := usecase.NewAnswerUseCase(engine, generator, judge, answerCache, reviews, queue, cfg.JudgeMaxRefinements)
	reviewUC := usecase.NewReviewUseCase(reviews, judge)

	return &App{
		Config: cfg,

		Queue:    queue,
		Reviews:  reviews,
		SearchUC: engine,
		AnswerUC: answerUC,
		ReviewUC: reviewUC,
		Judge:    judge,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
