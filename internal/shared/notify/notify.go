// Package notify delivers best-effort outbound messages. Delivery happens
// after the business transaction has committed and never feeds back into it.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/shared/retry"
	"go.uber.org/zap"
)

// Message is a composed plain-text notification.
type Message struct {
	Subject     string
	Body        string
	Attachments []string // stored object references
	Facts       map[string]string
}

// Dispatcher hands a message to one delivery channel.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// Multi fans a message out to every dispatcher; all are attempted.
type Multi []Dispatcher

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }

// Notifier sends messages in the background with bounded exponential backoff.
type Notifier struct {
	dispatcher Dispatcher
	policy     retry.Policy
	timeout    time.Duration
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewNotifier builds a notifier retrying up to maxAttempts times, doubling
// the wait from base up to limit.
func NewNotifier(d Dispatcher, maxAttempts int, base, limit time.Duration, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		dispatcher: d,
		timeout:    30 * time.Second,
		logger:     logger,
	}
	n.policy = retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Exponential(base, limit),
	}
	return n
}

// Dispatch queues msg for delivery and returns immediately. Every member of
// a Multi retries on its own, so a failing channel never resends on the
// channels that already delivered. Failures are logged once attempts run out.
func (n *Notifier) Dispatch(msg Message) {
	members := []Dispatcher{n.dispatcher}
	if m, ok := n.dispatcher.(Multi); ok {
		members = m
	}
	for i, d := range members {
		n.wg.Add(1)
		go func(channel int, d Dispatcher) {
			defer n.wg.Done()
			n.deliver(channel, d, msg)
		}(i, d)
	}
}

func (n *Notifier) deliver(channel int, d Dispatcher, msg Message) {
	policy := n.policy
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		n.logger.Warn("Notification attempt failed",
			zap.String("subject", msg.Subject),
			zap.Int("channel", channel),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return d.Send(ctx, msg)
	})
	if err != nil {
		n.logger.Error("Notification dropped",
			zap.String("subject", msg.Subject),
			zap.Int("channel", channel),
			zap.Error(err),
		)
		return
	}
	n.logger.Info("Notification sent", zap.String("subject", msg.Subject), zap.Int("channel", channel))
}

// Wait blocks until queued notifications finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
