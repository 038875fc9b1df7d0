package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// GoogleChat sends messages to a Google Chat space through its incoming
// webhook.
type GoogleChat struct {
	sender *router.ServiceRouter
}

// NewGoogleChat builds a sender for the given webhook URL. Plain
// https://chat.googleapis.com webhook URLs are accepted and translated to
// the googlechat:// service form.
func NewGoogleChat(webhookURL string, timeout time.Duration) (*GoogleChat, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	sender, err := shoutrrr.CreateSender(serviceURL(webhookURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &GoogleChat{sender: sender}, nil
}

// Send delivers one message body to the space.
func (g *GoogleChat) Send(ctx context.Context, body string) error {
	_ = ctx // the router handles its own timeouts

	params := stypes.Params{}
	errs := g.sender.Send(body, &params)
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to send chat message: %w", err)
		}
	}
	return nil
}

// serviceURL converts a Google Chat incoming-webhook URL into the service
// URL form the router expects. Values already carrying a service scheme
// pass through unchanged.
func serviceURL(webhook string) string {
	if strings.HasPrefix(webhook, "https://chat.googleapis.com/") {
		return "googlechat://" + strings.TrimPrefix(webhook, "https://")
	}
	return webhook
}
