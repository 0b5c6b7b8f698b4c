// Package notify holds notifiers that do not talk to an external service.
package notify

import (
	"context"
	"log/slog"
)

// Log writes confirmation codes to the structured log instead of delivering
// them. Only meant for local development.
type Log struct{}

func (Log) Notify(ctx context.Context, email, code string) error {
	slog.InfoContext(ctx, "confirmation code issued", "email", email, "code", code)
	return nil
}
