// Package notifier delivers reminder messages to users.
package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"

	apperrors "github.com/julianstephens/questbot/internal/errors"
	"github.com/julianstephens/questbot/internal/logger"
)

// Sender delivers one message to one user. Implementations must respect ctx
// cancellation and return an error wrapping errors.ErrDelivery on failure.
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, userID, text string) error

func (f SenderFunc) Send(ctx context.Context, userID, text string) error {
	return f(ctx, userID, text)
}

func deliveryError(userID string, err error) error {
	return fmt.Errorf("%w: user %s: %w", apperrors.ErrDelivery, userID, err)
}

// LogSender writes messages instead of sending them. Used for dry runs.
type LogSender struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLogSender(out io.Writer) *LogSender {
	return &LogSender{out: out}
}

func (s *LogSender) Send(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return deliveryError(userID, err)
	}
	logger.Info("Dry-run reminder", "user", userID)
	if s.out == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "[DryRun] %s: %s\n", userID, text); err != nil {
		return deliveryError(userID, err)
	}
	return nil
}
