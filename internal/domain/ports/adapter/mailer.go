package adapter

import "context"

// Email is one transactional message.
type Email struct {
	From    string
	To      string
	Subject string
	Body    string // html
}

// Mailer is the side-effect boundary for user notifications. Send failures
// never gate business state; callers log and continue.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
