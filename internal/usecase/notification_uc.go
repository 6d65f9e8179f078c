package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/adapter"
	"portrait-ai/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase mails users about terminal job states. It is a pure
// side-effect boundary: every method returns an error for logging, and no
// caller lets that error gate business state.
type NotificationUseCase interface {
	NotifyJobSucceeded(ctx context.Context, job *model.TrainingJob) error
	NotifyJobFinished(ctx context.Context, job *model.TrainingJob, status model.TrainingJobStatus) error
}

type notificationUC struct {
	directory adapter.AccountDirectory
	mailer    adapter.Mailer
	from      string
	log       *zerolog.Logger
}

func NewNotificationUseCase(directory adapter.AccountDirectory, mailer adapter.Mailer, from string, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{directory: directory, mailer: mailer, from: from, log: &l}
}

func (n *notificationUC) NotifyJobSucceeded(ctx context.Context, job *model.TrainingJob) error {
	to, err := n.directory.EmailFor(ctx, job.AccountID)
	if err != nil {
		metrics.IncMail("success", "error")
		return fmt.Errorf("resolve account email: %w", err)
	}
	msg := adapter.Email{
		From:    n.from,
		To:      to,
		Subject: fmt.Sprintf("Your model %q is ready", job.ModelName),
		Body: fmt.Sprintf(
			"<p>Training of <b>%s</b> finished successfully. You can now generate images with your custom model.</p>",
			job.ModelName),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		metrics.IncMail("success", "error")
		return err
	}
	metrics.IncMail("success", "sent")
	return nil
}

func (n *notificationUC) NotifyJobFinished(ctx context.Context, job *model.TrainingJob, status model.TrainingJobStatus) error {
	to, err := n.directory.EmailFor(ctx, job.AccountID)
	if err != nil {
		metrics.IncMail("failure", "error")
		return fmt.Errorf("resolve account email: %w", err)
	}
	msg := adapter.Email{
		From:    n.from,
		To:      to,
		Subject: fmt.Sprintf("Training of %q did not complete", job.ModelName),
		Body: fmt.Sprintf(
			"<p>Training of <b>%s</b> ended with status <b>%s</b>. Your credit was consumed; contact support if this keeps happening.</p>",
			job.ModelName, status),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		metrics.IncMail("failure", "error")
		return err
	}
	metrics.IncMail("failure", "sent")
	return nil
}
