//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
)

func seedCredits(t *testing.T, accountID string, images, trainings int) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO credits (account_id, image_generation_count, model_training_count) VALUES ($1, $2, $3)`,
		accountID, images, trainings)
	if err != nil {
		t.Fatalf("failed to seed credits: %v", err)
	}
}

func TestCreditRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewCreditRepo(testPool)

	t.Run("should read the ledger row", func(t *testing.T) {
		cleanup(t)
		seedCredits(t, "u1", 7, 3)

		bal, err := repo.FindByAccount(ctx, nil, "u1")
		if err != nil {
			t.Fatalf("find by account: %v", err)
		}
		if bal.ImageGenerationCount != 7 || bal.ModelTrainingCount != 3 {
			t.Errorf("unexpected balance %+v", bal)
		}

		if _, err := repo.FindByAccount(ctx, nil, "nobody"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for a missing row, got %v", err)
		}
	})

	t.Run("should decrement only the selected counter", func(t *testing.T) {
		cleanup(t)
		seedCredits(t, "u1", 5, 3)

		remaining, err := repo.DecrementIfPositive(ctx, nil, "u1", model.UsageKindModelTraining)
		if err != nil {
			t.Fatalf("decrement: %v", err)
		}
		if remaining != 2 {
			t.Errorf("expected 2 remaining, got %d", remaining)
		}

		bal, err := repo.FindByAccount(ctx, nil, "u1")
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if bal.ImageGenerationCount != 5 {
			t.Errorf("image counter must be untouched, got %d", bal.ImageGenerationCount)
		}
	})

	t.Run("should refuse to spend from an empty counter", func(t *testing.T) {
		cleanup(t)
		seedCredits(t, "u1", 5, 0)

		if _, err := repo.DecrementIfPositive(ctx, nil, "u1", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}

		// A missing ledger row reads the same as an empty one here.
		if _, err := repo.DecrementIfPositive(ctx, nil, "nobody", model.UsageKindModelTraining); !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits for a missing row, got %v", err)
		}
	})

	t.Run("should never overspend under concurrent decrements", func(t *testing.T) {
		cleanup(t)
		seedCredits(t, "u1", 0, 3)

		const workers = 10
		var succeeded int64
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				if _, err := repo.DecrementIfPositive(ctx, nil, "u1", model.UsageKindModelTraining); err == nil {
					atomic.AddInt64(&succeeded, 1)
				}
			}()
		}
		wg.Wait()

		if succeeded != 3 {
			t.Errorf("expected exactly 3 successful spends, got %d", succeeded)
		}
		var remaining int
		if err := testPool.QueryRow(ctx, "SELECT model_training_count FROM credits WHERE account_id = 'u1'").Scan(&remaining); err != nil {
			t.Fatalf("query remaining: %v", err)
		}
		if remaining != 0 {
			t.Errorf("expected the counter drained to 0, got %d", remaining)
		}
	})
}
