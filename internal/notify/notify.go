// Package notify reports connection test results as desktop notifications.
package notify

import (
	"fmt"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/probe"
)

// Notifier reports the outcome of a connection test.
type Notifier interface {
	NotifyOutcome(dsn string, o probe.Outcome) error
}

// Option configures a Notifier.
type Option func(*notifier)

// WithBackend replaces the desktop backend.
func WithBackend(backend Backend) Option {
	return func(n *notifier) {
		n.backend = backend
	}
}

type notifier struct {
	onSuccess bool
	onFailure bool
	backend   Backend
}

// NotifyOutcome sends a notification for o if the configuration asks for it.
// Failures are sent as alerts.
func (n *notifier) NotifyOutcome(dsn string, o probe.Outcome) error {
	if o.OK() {
		if !n.onSuccess {
			return nil
		}
		return n.backend.Notify("esdsn: Connection OK",
			fmt.Sprintf("DSN '%s': %s", dsn, o), "")
	}

	if !n.onFailure {
		return nil
	}
	return n.backend.Alert("esdsn: Connection Failed",
		fmt.Sprintf("DSN '%s': %s", dsn, o), "")
}

// New creates a Notifier from the notification settings.
func New(cfg config.NotificationConfig, opts ...Option) Notifier {
	n := &notifier{
		onSuccess: cfg.Enabled && cfg.OnSuccess,
		onFailure: cfg.Enabled && cfg.OnFailure,
		backend:   desktopBackend{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}
