package notifier

import (
	"fmt"
	"io"
)

// Notifier kinds accepted in configuration
const (
	KindMax     = "max"
	KindWebhook = "webhook"
	KindRelay   = "relay"
	KindLog     = "log"
)

type Options struct {
	Kind          string
	BotToken      string
	WebhookURL    string
	WebhookSecret string
	RelayDir      string
	// Out receives dry-run output for the log notifier
	Out io.Writer
}

// New builds the sender selected by opts.Kind
func New(opts Options) (Sender, error) {
	switch opts.Kind {
	case KindMax:
		return NewMaxSender(opts.BotToken)
	case KindWebhook:
		return NewWebhookSender(opts.WebhookURL, opts.WebhookSecret)
	case KindRelay:
		return NewRelaySender(opts.RelayDir)
	case KindLog, "":
		return NewLogSender(opts.Out), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q (expected max, webhook, relay or log)", opts.Kind)
	}
}
