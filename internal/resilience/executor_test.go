package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kailas-cloud/pastq/internal/domain"
)

func fastConfig(breaker bool) Config {
	return Config{
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         2 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          breaker,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func TestExecute_RetriesConnectionFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "store", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return domain.ErrStoreConnection
		}
		return nil
	}, StoreClassifier)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecute_GivesUpAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "store", func(context.Context) error {
		attempts++
		return domain.ErrStoreConnection
	}, StoreClassifier)
	if !errors.Is(err, domain.ErrStoreConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecute_DoesNotRetryMissingCollection(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "store", func(context.Context) error {
		attempts++
		return domain.ErrCollectionNotFound
	}, StoreClassifier)
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecute_StopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "store", func(context.Context) error {
		t.Fatal("must not run with a cancelled context")
		return nil
	}, StoreClassifier)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecute_OpensCircuitAfterFailures(t *testing.T) {
	cfg := fastConfig(true)
	cfg.RetryMaxAttempts = 1
	var states []string
	exec := NewExecutor(cfg, nil).WithStateHook(func(_, state string) {
		states = append(states, state)
	})

	errBoom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "store", func(context.Context) error {
			return errBoom
		}, nil)
		if !errors.Is(err, errBoom) {
			t.Fatalf("iteration %d: got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "store", func(context.Context) error {
		t.Fatal("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(states) != 1 || states[0] != "open" {
		t.Errorf("state hook calls = %v", states)
	}
}

func TestStoreClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"connection", domain.ErrStoreConnection, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"not_found", domain.ErrCollectionNotFound, ErrorClassification{}},
		{"canceled", context.Canceled, ErrorClassification{}},
		{"other", errors.New("x"), ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StoreClassifier(tc.err); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	got := Config{RetryMultiplier: 0.5, BreakerFailureRatio: 2}.normalize()
	def := DefaultConfig()
	if got.RetryMaxAttempts != def.RetryMaxAttempts || got.RetryMultiplier != def.RetryMultiplier {
		t.Errorf("retry defaults not applied: %+v", got)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Errorf("ratio = %v", got.BreakerFailureRatio)
	}
}
