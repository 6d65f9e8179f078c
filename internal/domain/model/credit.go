package model

import "time"

// UsageKind selects which per-account counter a paid operation draws from.
type UsageKind string

const (
	UsageKindImageGeneration UsageKind = "image_generation"
	UsageKindModelTraining   UsageKind = "model_training"
)

// CreditBalance is the per-account ledger row. Counters never go negative;
// they are decremented only after the corresponding remote operation has been
// confirmed started. The row itself is provisioned alongside the account by
// the identity service and is never deleted here.
type CreditBalance struct {
	AccountID            string
	ImageGenerationCount int
	ModelTrainingCount   int
	UpdatedAt            time.Time
}

// Remaining returns the counter for the given kind.
func (c *CreditBalance) Remaining(kind UsageKind) int {
	if kind == UsageKindImageGeneration {
		return c.ImageGenerationCount
	}
	return c.ModelTrainingCount
}
