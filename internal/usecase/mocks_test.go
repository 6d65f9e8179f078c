//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/adapter"
	"portrait-ai/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// --- Training job repo ---

// MockJobRepo is a small in-memory implementation used by unit tests.
type MockJobRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.TrainingJob
	SaveErr error // used by tests to simulate save failures
}

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{store: make(map[string]*model.TrainingJob)}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.TrainingJob) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(m.store)+1)
	}
	job.UpdatedAt = time.Now()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TrainingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) FindByAccountAndName(ctx context.Context, tx repository.Tx, accountID, modelName string) (*model.TrainingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *model.TrainingJob
	for _, j := range m.store {
		if j.AccountID != accountID || j.ModelName != modelName {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.TrainingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.TrainingJob
	for _, j := range m.store {
		if j.AccountID == accountID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockJobRepo) FindPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.TrainingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.TrainingJob
	for _, j := range m.store {
		if j.Status == model.TrainingJobStatusPending && j.CreatedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockJobRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// --- Credit repo ---

// MockCreditRepo guards its counters with a mutex so the conditional
// decrement behaves like the storage-level atomic update.
type MockCreditRepo struct {
	mu    sync.Mutex
	store map[string]*model.CreditBalance
}

func NewMockCreditRepo() *MockCreditRepo {
	return &MockCreditRepo{store: make(map[string]*model.CreditBalance)}
}

func (m *MockCreditRepo) Seed(accountID string, gen, train int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[accountID] = &model.CreditBalance{
		AccountID:            accountID,
		ImageGenerationCount: gen,
		ModelTrainingCount:   train,
	}
}

func (m *MockCreditRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.CreditBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCreditRepo) DecrementIfPositive(ctx context.Context, tx repository.Tx, accountID string, kind model.UsageKind) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[accountID]
	if !ok {
		return 0, domain.ErrInsufficientCredits
	}
	if kind == model.UsageKindImageGeneration {
		if c.ImageGenerationCount <= 0 {
			return 0, domain.ErrInsufficientCredits
		}
		c.ImageGenerationCount--
		return c.ImageGenerationCount, nil
	}
	if c.ModelTrainingCount <= 0 {
		return 0, domain.ErrInsufficientCredits
	}
	c.ModelTrainingCount--
	return c.ModelTrainingCount, nil
}

// --- Trainer client ---

type MockTrainerClient struct {
	CreateModelFunc   func(ctx context.Context, owner, name string, visibility adapter.ModelVisibility, hardware string) error
	StartTrainingFunc func(ctx context.Context, trainerVersion, destination string, input adapter.TrainingInput, webhookURL string, events []string) (*adapter.Training, error)
	SecretFunc        func(ctx context.Context) (string, error)

	CreateModelCalls   int
	StartTrainingCalls int
	LastDestination    string
	LastWebhookURL     string
	LastInput          adapter.TrainingInput
}

func (m *MockTrainerClient) CreateModel(ctx context.Context, owner, name string, visibility adapter.ModelVisibility, hardware string) error {
	m.CreateModelCalls++
	m.LastDestination = name
	if m.CreateModelFunc != nil {
		return m.CreateModelFunc(ctx, owner, name, visibility, hardware)
	}
	return nil
}

func (m *MockTrainerClient) StartTraining(ctx context.Context, trainerVersion, destination string, input adapter.TrainingInput, webhookURL string, events []string) (*adapter.Training, error) {
	m.StartTrainingCalls++
	m.LastWebhookURL = webhookURL
	m.LastInput = input
	if m.StartTrainingFunc != nil {
		return m.StartTrainingFunc(ctx, trainerVersion, destination, input, webhookURL, events)
	}
	return &adapter.Training{ID: "trn-1", Status: "starting"}, nil
}

func (m *MockTrainerClient) DeleteModelVersion(ctx context.Context, owner, name, versionID string) error {
	return nil
}

func (m *MockTrainerClient) DeleteModel(ctx context.Context, owner, name string) error {
	return nil
}

func (m *MockTrainerClient) WebhookSigningSecret(ctx context.Context) (string, error) {
	if m.SecretFunc != nil {
		return m.SecretFunc(ctx)
	}
	return "whsec_dGVzdC1zZWNyZXQ=", nil
}

// --- Storage ---

type MockStorage struct {
	DownloadURLFunc func(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteFunc      func(ctx context.Context, key string) error

	DeletedKeys []string
}

func (m *MockStorage) SignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.DownloadURLFunc != nil {
		return m.DownloadURLFunc(ctx, key, expiry)
	}
	return "https://storage.example.com/" + key + "?sig=abc", nil
}

func (m *MockStorage) SignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.example.com/upload/" + key + "?sig=abc", nil
}

func (m *MockStorage) DeleteObject(ctx context.Context, key string) error {
	m.DeletedKeys = append(m.DeletedKeys, key)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// --- Mailer and directory ---

type MockMailer struct {
	SendFunc func(ctx context.Context, msg adapter.Email) error
	Sent     []adapter.Email
}

func (m *MockMailer) Send(ctx context.Context, msg adapter.Email) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

type MockDirectory struct {
	Emails map[string]string
}

func (m *MockDirectory) EmailFor(ctx context.Context, accountID string) (string, error) {
	if e, ok := m.Emails[accountID]; ok {
		return e, nil
	}
	return "", domain.ErrNotFound
}

// --- Transaction manager ---

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
