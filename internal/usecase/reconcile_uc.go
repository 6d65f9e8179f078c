package usecase

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/adapter"
	"portrait-ai/internal/domain/ports/repository"
	"portrait-ai/internal/infra/logging"
	"portrait-ai/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// CompletionEvent is one verified webhook delivery, already authenticated.
// AccountID, ModelName and FileName come from the callback URL's correlation
// parameters; the rest from the JSON body.
type CompletionEvent struct {
	AccountID       string
	ModelName       string
	FileName        string
	Status          string
	DurationSeconds *float64
	Version         string // composite "model:version" string, may be empty
}

// ReconcileUseCase applies terminal provider state to the local job record.
// Transitions are legal only from pending; a delivery naming a job already
// terminal is accepted and ignored, which is the whole idempotency story
// under at-least-once redelivery. The first terminal write wins; later
// conflicting events are dropped.
type ReconcileUseCase interface {
	Apply(ctx context.Context, ev CompletionEvent) error
	// TimeOut force-finishes a job whose provider never called back. Used by
	// the pending sweep; takes the same transition path as a webhook.
	TimeOut(ctx context.Context, jobID string) error
}

type reconcileUC struct {
	jobs         repository.TrainingJobRepository
	tm           repository.TransactionManager
	notify       NotificationUseCase
	store        adapter.Storage
	uploadPrefix string
	log          *zerolog.Logger
}

func NewReconcileUseCase(
	jobs repository.TrainingJobRepository,
	tm repository.TransactionManager,
	notify NotificationUseCase,
	store adapter.Storage,
	uploadPrefix string,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{jobs: jobs, tm: tm, notify: notify, store: store, uploadPrefix: uploadPrefix, log: &l}
}

func (u *reconcileUC) Apply(ctx context.Context, ev CompletionEvent) error {
	defer logging.TraceDuration(u.log, "ReconcileUC.Apply")()
	status := terminalStatus(ev.Status)

	var job *model.TrainingJob
	var duplicate bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The row is locked FOR UPDATE inside the tx, so two concurrent
		// redeliveries serialize and the loser sees a terminal row.
		j, err := u.jobs.FindByAccountAndName(ctx, tx, ev.AccountID, ev.ModelName)
		if err != nil {
			return err
		}
		if j.Status.IsTerminal() {
			duplicate = true
			job = j
			return nil
		}

		j.Status = status
		if status == model.TrainingJobStatusSucceeded {
			j.DurationSeconds = ev.DurationSeconds
			if v := trainedVersionRef(ev.Version); v != "" {
				j.TrainedVersion = &v
			}
		}
		if err := u.jobs.Save(ctx, tx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return err
	}

	if duplicate {
		metrics.IncTrainingReconciled("duplicate")
		u.log.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("redelivered event for terminal job ignored")
		// redelivery still gets a 2xx, and the artifact may linger from a
		// failed earlier cleanup, so retry it
		u.cleanupArtifact(ctx, ev.FileName)
		return nil
	}

	metrics.IncTrainingReconciled(string(status))
	u.log.Info().Str("job_id", job.ID).Str("status", string(status)).Msg("training job reconciled")

	if status == model.TrainingJobStatusSucceeded {
		if err := u.notify.NotifyJobSucceeded(ctx, job); err != nil {
			u.log.Error().Err(err).Str("job_id", job.ID).Msg("success notification")
		}
	} else {
		if err := u.notify.NotifyJobFinished(ctx, job, status); err != nil {
			u.log.Error().Err(err).Str("job_id", job.ID).Msg("failure notification")
		}
	}

	// Unconditional: leaking the consumed archive is worse than a failed
	// cleanup retry, and the provider must still get its 2xx.
	u.cleanupArtifact(ctx, ev.FileName)
	return nil
}

func (u *reconcileUC) TimeOut(ctx context.Context, jobID string) error {
	var job *model.TrainingJob
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		j, err := u.jobs.FindByID(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.Status.IsTerminal() {
			// a webhook won the race since the sweep selected this job
			return nil
		}
		j.Status = model.TrainingJobStatusTimedOut
		if err := u.jobs.Save(ctx, tx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil || job == nil {
		return err
	}

	metrics.IncTrainingReconciled(string(model.TrainingJobStatusTimedOut))
	if err := u.notify.NotifyJobFinished(ctx, job, model.TrainingJobStatusTimedOut); err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("timeout notification")
	}
	return nil
}

func (u *reconcileUC) cleanupArtifact(ctx context.Context, fileName string) {
	if fileName == "" {
		return
	}
	key := u.uploadPrefix + fileName
	if err := u.store.DeleteObject(ctx, key); err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("temp artifact cleanup failed")
	}
}

// terminalStatus maps the provider's status string onto the local state
// machine; anything not recognized as a clean cancel counts as failed.
func terminalStatus(s string) model.TrainingJobStatus {
	switch s {
	case "succeeded":
		return model.TrainingJobStatusSucceeded
	case "canceled":
		return model.TrainingJobStatusCanceled
	default:
		return model.TrainingJobStatusFailed
	}
}

// trainedVersionRef extracts the version id from the provider's composite
// "owner/model:version" output string.
func trainedVersionRef(composite string) string {
	if composite == "" {
		return ""
	}
	if _, after, found := strings.Cut(composite, ":"); found {
		return after
	}
	return composite
}
