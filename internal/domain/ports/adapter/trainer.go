package adapter

import (
	"context"
	"fmt"
)

// APIError carries the remote provider's HTTP status and message so callers
// can log and map failures without string-matching.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trainer api: status %d: %s", e.StatusCode, e.Message)
}

// ModelVisibility of a created model slot.
type ModelVisibility string

const (
	ModelVisibilityPrivate ModelVisibility = "private"
	ModelVisibilityPublic  ModelVisibility = "public"
)

// TrainingInput is the fixed hyperparameter set passed to the remote trainer.
type TrainingInput struct {
	InputImages string `json:"input_images"` // signed URL of the uploaded archive
	TriggerWord string `json:"trigger_word"`
	Steps       int    `json:"steps"`
	Resolution  string `json:"resolution"`
	Subject     string `json:"subject"` // model-configuration tag, opaque here
}

// Training is the provider's view of a started run.
type Training struct {
	ID     string
	Status string
}

// TrainerClient is the port for the remote fine-tuning provider. All calls
// are single network round trips; none retry internally.
type TrainerClient interface {
	// CreateModel reserves a destination model slot. Idempotent only for a
	// fresh name; the caller mints a collision-resistant one.
	CreateModel(ctx context.Context, owner, name string, visibility ModelVisibility, hardware string) error
	// StartTraining launches a run against the trainer version, delivering
	// terminal-state callbacks to webhookURL filtered to events.
	StartTraining(ctx context.Context, trainerVersion, destination string, input TrainingInput, webhookURL string, events []string) (*Training, error)
	// DeleteModelVersion must be called before DeleteModel of the parent.
	DeleteModelVersion(ctx context.Context, owner, name, versionID string) error
	DeleteModel(ctx context.Context, owner, name string) error
	// WebhookSigningSecret returns the shared webhook signing secret
	// ("whsec_<base64>" form). Implementations cache it process-wide.
	WebhookSigningSecret(ctx context.Context) (string, error)
}
