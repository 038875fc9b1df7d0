// Package notify delivers formatted alert messages to chat backends. The
// notifiers carry opaque message bodies; they never recompute statuses or
// touch the evaluation itself.
package notify

import (
	"context"
	"fmt"

	"github.com/icuwatch/mortalert/internal/config"
	"github.com/icuwatch/mortalert/internal/logger"
)

// Notifier sends one message body to a chat destination.
type Notifier interface {
	Send(ctx context.Context, body string) error
}

// Disabled is the no-op backend selected when delivery is turned off.
type Disabled struct{}

// Send drops the message.
func (Disabled) Send(_ context.Context, body string) error {
	logger.Debug("alert delivery disabled, dropping message (%d bytes)", len(body))
	return nil
}

// New builds the Notifier selected by cfg.Backend.
func New(cfg *config.AlertsConfig) (Notifier, error) {
	switch cfg.Backend {
	case "googlechat":
		return NewGoogleChat(cfg.WebhookURL, cfg.SendTimeout)
	case "telegram":
		return NewTelegram(cfg.BotToken, cfg.ChatID, cfg.MaxRetries, cfg.RetryDelayBase)
	case "none", "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown alert backend %q", cfg.Backend)
	}
}
