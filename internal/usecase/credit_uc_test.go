//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/usecase"
)

func TestCreditUC_CheckAndReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the remaining count without mutating", func(t *testing.T) {
		repo := NewMockCreditRepo()
		repo.Seed("u1", 2, 5)
		uc := usecase.NewCreditUseCase(repo, newTestLogger())

		remaining, err := uc.CheckAndReserve(ctx, "u1", model.UsageKindModelTraining)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if remaining != 5 {
			t.Errorf("expected 5 remaining, got %d", remaining)
		}
		bal, _ := repo.FindByAccount(ctx, nil, "u1")
		if bal.ModelTrainingCount != 5 {
			t.Errorf("check must not mutate, got %d", bal.ModelTrainingCount)
		}
	})

	t.Run("should deny zero balance and missing rows alike", func(t *testing.T) {
		repo := NewMockCreditRepo()
		repo.Seed("u1", 0, 0)
		uc := usecase.NewCreditUseCase(repo, newTestLogger())

		if _, err := uc.CheckAndReserve(ctx, "u1", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Errorf("zero balance: expected ErrInsufficientCredits, got %v", err)
		}
		if _, err := uc.CheckAndReserve(ctx, "ghost", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Errorf("missing row: expected ErrInsufficientCredits, got %v", err)
		}
	})

	t.Run("should track image generation separately from training", func(t *testing.T) {
		repo := NewMockCreditRepo()
		repo.Seed("u1", 3, 0)
		uc := usecase.NewCreditUseCase(repo, newTestLogger())

		if _, err := uc.CheckAndReserve(ctx, "u1", model.UsageKindImageGeneration); err != nil {
			t.Errorf("expected generation to pass, got %v", err)
		}
		if _, err := uc.CheckAndReserve(ctx, "u1", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Errorf("expected training to be denied, got %v", err)
		}
	})
}

func TestCreditUC_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("should never overspend under concurrent commits", func(t *testing.T) {
		repo := NewMockCreditRepo()
		repo.Seed("u1", 0, 3)
		uc := usecase.NewCreditUseCase(repo, newTestLogger())

		const workers = 10
		var wg sync.WaitGroup
		var mu sync.Mutex
		committed := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := uc.Commit(ctx, nil, "u1", model.UsageKindModelTraining); err == nil {
					mu.Lock()
					committed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if committed != 3 {
			t.Errorf("expected exactly 3 successful commits, got %d", committed)
		}
		bal, _ := repo.FindByAccount(ctx, nil, "u1")
		if bal.ModelTrainingCount != 0 {
			t.Errorf("expected counter at 0, got %d", bal.ModelTrainingCount)
		}
	})

	t.Run("should fail a commit on an empty counter", func(t *testing.T) {
		repo := NewMockCreditRepo()
		repo.Seed("u1", 0, 0)
		uc := usecase.NewCreditUseCase(repo, newTestLogger())

		if _, err := uc.Commit(ctx, nil, "u1", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
	})
}
