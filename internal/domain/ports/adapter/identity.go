package adapter

import "context"

// AccountDirectory resolves account contact details. Accounts live with the
// external identity service; this core only reads from it.
type AccountDirectory interface {
	EmailFor(ctx context.Context, accountID string) (string, error)
}
