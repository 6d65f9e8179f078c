package model

import (
	"fmt"
	"strings"
	"time"
)

type TrainingJobStatus string

const (
	TrainingJobStatusPending   TrainingJobStatus = "pending"
	TrainingJobStatusSucceeded TrainingJobStatus = "succeeded"
	TrainingJobStatusFailed    TrainingJobStatus = "failed"
	TrainingJobStatusCanceled  TrainingJobStatus = "canceled"
	TrainingJobStatusTimedOut  TrainingJobStatus = "timed_out"
)

// IsTerminal reports whether no further legitimate transition exists.
func (s TrainingJobStatus) IsTerminal() bool {
	return s == TrainingJobStatusSucceeded ||
		s == TrainingJobStatusFailed ||
		s == TrainingJobStatusCanceled ||
		s == TrainingJobStatusTimedOut
}

// TrainingJob is one remote fine-tuning run. A row is written only after the
// remote provider has accepted the training start, so a persisted job always
// has a RemoteTrainingID. Rows are never deleted; terminal jobs are kept as
// audit history.
type TrainingJob struct {
	ID               string
	AccountID        string
	RemoteModelID    string // globally unique, minted at submission time
	RemoteTrainingID string // opaque provider run id
	ModelName        string
	TriggerWord      string
	RequestedSteps   int
	Status           TrainingJobStatus
	DurationSeconds  *float64
	TrainedVersion   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MintRemoteModelID derives a collision-resistant provider-side model id from
// the account, a millisecond timestamp, and a slug of the human name.
func MintRemoteModelID(accountID, modelName string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", accountID, now.UnixMilli(), Slug(modelName))
}

// Slug lowercases and collapses anything outside [a-z0-9] into single dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
