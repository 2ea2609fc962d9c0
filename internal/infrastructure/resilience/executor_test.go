package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errBrokerDown = errors.New("broker down")

func retryAllClassifier(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func testRetryConfig(attempts int) Config {
	return Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(testRetryConfig(3), retryAllClassifier)

	attempts := 0
	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errBrokerDown
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(testRetryConfig(3), func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})

	attempts := 0
	errPermanent := errors.New("invalid prompt")
	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		attempts++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteUsesConservativeClassifierWhenNil(t *testing.T) {
	exec := NewExecutor(testRetryConfig(3), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		attempts++
		return errBrokerDown
	})
	if !errors.Is(err, errBrokerDown) {
		t.Fatalf("expected error surfaced, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries without a classifier, got %d attempts", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
			return errBrokerDown
		})
		if !errors.Is(err, errBrokerDown) {
			t.Fatalf("expected failure on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}

	// A different operation on the same executor keeps its own breaker.
	var called bool
	if err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("expected independent breaker per operation, got %v", err)
	}
	if !called {
		t.Fatalf("expected operation with a healthy breaker to run")
	}
}

func TestCallProfilesNormalizeConsistently(t *testing.T) {
	for name, cfg := range map[string]Config{
		"model":     ModelCallConfig(),
		"messaging": MessagingConfig(),
		"default":   DefaultConfig(),
	} {
		got := cfg.normalize()
		if got != cfg {
			t.Errorf("%s profile altered by normalize: %+v != %+v", name, got, cfg)
		}
	}

	zero := Config{}.normalize()
	if zero.RetryMaxAttempts != 3 || zero.RetryMaxBackoff < zero.RetryInitialBackoff {
		t.Fatalf("unexpected zero-value normalization: %+v", zero)
	}
}
