package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/adapter"
	"portrait-ai/internal/domain/ports/repository"
	"portrait-ai/internal/infra/logging"
	"portrait-ai/internal/infra/metrics"
)

// Compile-time check
var _ TrainingUseCase = (*trainingUC)(nil)

const signedURLExpiry = time.Hour

// SubmitRequest is one user-triggered training submission.
type SubmitRequest struct {
	FileKey   string // object key of the previously uploaded archive
	ModelName string
	Gender    string // model-configuration tag, passed through opaquely
}

// TrainingOptions carries the fixed provider-side parameters for every run.
type TrainingOptions struct {
	Owner          string // provider namespace owning created models
	TrainerVersion string
	Hardware       string
	Steps          int
	Resolution     string
	TriggerWord    string
	UploadPrefix   string // storage key prefix of training archives
	CallbackBase   string // externally reachable base URL for the webhook
}

type TrainingUseCase interface {
	// Submit validates the request, checks credits, starts the remote run
	// and persists the pending job. No local row and no credit spend happen
	// on any remote failure.
	Submit(ctx context.Context, accountID string, req SubmitRequest) (*model.TrainingJob, error)
	// ListJobs returns the account's training history, newest first.
	ListJobs(ctx context.Context, accountID string) ([]*model.TrainingJob, error)
}

type trainingUC struct {
	jobs    repository.TrainingJobRepository
	credits CreditUseCase
	trainer adapter.TrainerClient
	store   adapter.Storage
	opts    TrainingOptions
	log     *zerolog.Logger
}

func NewTrainingUseCase(
	jobs repository.TrainingJobRepository,
	credits CreditUseCase,
	trainer adapter.TrainerClient,
	store adapter.Storage,
	opts TrainingOptions,
	logger *zerolog.Logger,
) *trainingUC {
	l := logger.With().Str("component", "TrainingUC").Logger()
	return &trainingUC{jobs: jobs, credits: credits, trainer: trainer, store: store, opts: opts, log: &l}
}

func (u *trainingUC) Submit(ctx context.Context, accountID string, req SubmitRequest) (*model.TrainingJob, error) {
	defer logging.TraceDuration(u.log, "TrainingUC.Submit")()
	start := time.Now()

	if accountID == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.FileKey == "" || req.ModelName == "" {
		return nil, fmt.Errorf("fileKey and modelName are required: %w", domain.ErrInvalidArgument)
	}

	fileName := strings.TrimPrefix(req.FileKey, u.opts.UploadPrefix)

	// The provider pulls the archive itself, so it needs a time-limited URL.
	archiveURL, err := u.store.SignedDownloadURL(ctx, req.FileKey, signedURLExpiry)
	if err != nil || archiveURL == "" {
		u.log.Error().Err(err).Str("file_key", req.FileKey).Msg("signed download url")
		return nil, domain.ErrStorageUnavailable
	}

	// Admission check before any remote side effect; the actual spend is the
	// atomic commit after the run is confirmed started.
	if _, err := u.credits.CheckAndReserve(ctx, accountID, model.UsageKindModelTraining); err != nil {
		metrics.IncTrainingStarted("rejected")
		return nil, err
	}

	now := time.Now()
	destination := model.MintRemoteModelID(accountID, req.ModelName, now)

	if err := u.trainer.CreateModel(ctx, u.opts.Owner, destination, adapter.ModelVisibilityPrivate, u.opts.Hardware); err != nil {
		metrics.IncTrainingStarted("provider_error")
		u.log.Error().Err(err).Str("destination", destination).Msg("create model slot")
		return nil, err
	}

	input := adapter.TrainingInput{
		InputImages: archiveURL,
		TriggerWord: u.opts.TriggerWord,
		Steps:       u.opts.Steps,
		Resolution:  u.opts.Resolution,
		Subject:     req.Gender,
	}
	training, err := u.trainer.StartTraining(ctx,
		u.opts.TrainerVersion,
		u.opts.Owner+"/"+destination,
		input,
		u.webhookURL(accountID, req.ModelName, fileName),
		[]string{"completed"},
	)
	if err != nil {
		// The created model slot is orphaned here; the provider has no run
		// to attach to it and no local state references it.
		metrics.IncTrainingStarted("provider_error")
		u.log.Error().Err(err).Str("destination", destination).Msg("start training")
		return nil, err
	}

	job := &model.TrainingJob{
		AccountID:        accountID,
		RemoteModelID:    destination,
		RemoteTrainingID: training.ID,
		ModelName:        req.ModelName,
		TriggerWord:      u.opts.TriggerWord,
		RequestedSteps:   u.opts.Steps,
		Status:           model.TrainingJobStatusPending,
		CreatedAt:        now,
	}
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		u.log.Error().Err(err).Str("training_id", training.ID).Msg("persist pending job")
		return nil, err
	}

	if _, err := u.credits.Commit(ctx, nil, accountID, model.UsageKindModelTraining); err != nil {
		// The run is already started; losing the decrement race here is
		// logged, not compensated.
		u.log.Warn().Err(err).Str("job_id", job.ID).Msg("credit commit after start")
	}

	metrics.IncTrainingStarted("started")
	metrics.ObserveTrainingStart(time.Since(start).Seconds())
	u.log.Info().Str("job_id", job.ID).Str("training_id", training.ID).Str("destination", destination).Msg("training started")
	return job, nil
}

func (u *trainingUC) ListJobs(ctx context.Context, accountID string) ([]*model.TrainingJob, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthorized
	}
	return u.jobs.ListByAccount(ctx, nil, accountID)
}

// webhookURL embeds the correlation parameters; they are the only channel
// joining the eventual callback back to this submission.
func (u *trainingUC) webhookURL(accountID, modelName, fileName string) string {
	q := url.Values{}
	q.Set("userId", accountID)
	q.Set("modelName", modelName)
	q.Set("fileName", fileName)
	// percent-encode spaces; the provider echoes this URL back verbatim
	encoded := strings.ReplaceAll(q.Encode(), "+", "%20")
	return strings.TrimSuffix(u.opts.CallbackBase, "/") + "/api/webhooks/training?" + encoded
}
