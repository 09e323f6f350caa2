// Package notify is the fire-and-forget admin alert surface. Delivery
// (email, socket, push) lives in the notification service; the core only
// hands it structured alerts and never fails an operation over one.
package notify

import (
	"context"
	"log/slog"
)

type AdminAlert struct {
	Type    string
	Title   string
	Message string
	Meta    map[string]any
}

type Notifier interface {
	NotifyAdmins(ctx context.Context, alert AdminAlert) error
}

// LogNotifier is the default sink when no delivery backend is wired.
type LogNotifier struct{}

func (LogNotifier) NotifyAdmins(_ context.Context, a AdminAlert) error {
	slog.Warn("admin alert", "type", a.Type, "title", a.Title, "message", a.Message, "meta", a.Meta)
	return nil
}
