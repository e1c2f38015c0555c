package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "montoit/pkg/domain"
)

// Publisher records audit events, either synchronously or through a
// buffered background worker. Async mode drops events when the buffer is
// full rather than blocking request handling.
type Publisher struct {
	store  Store
	logger *slog.Logger

	buffer chan Event
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous publishing with the given buffer
// size. Emit never blocks; overflow events are dropped and logged.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan Event, size)
	}
}

// WithLogger sets the logger used for drops and store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a Publisher. Without options it writes events
// synchronously on Emit.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("audit append failed",
				"action", string(event.Action),
				"error", err,
			)
		}
	}
}

// Emit records an audit event. A zero Timestamp is stamped with the
// current time.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("audit buffer full, event dropped",
			"action", string(event.Action),
		)
	}
	return nil
}

// List returns the audit trail for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close drains the async buffer and stops the worker. Safe to call on a
// synchronous publisher and safe to call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
