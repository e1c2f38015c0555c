package kyc

import (
	"context"
	"log/slog"
	"time"

	"montoit/internal/verification"
	id "montoit/pkg/domain"
)

const (
	// DefaultPollInterval matches the vendor's recommended status cadence.
	DefaultPollInterval = 3 * time.Second
	// DefaultPollTimeout bounds how long one watch keeps a goroutine alive for
	// a job the vendor never finishes.
	DefaultPollTimeout = 5 * time.Minute
)

// Poller watches an in-flight KYC attempt, re-polling the vendor on a fixed
// interval and streaming status snapshots until the job turns terminal.
type Poller struct {
	service  *Service
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the poll cadence, mainly for tests.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout overrides the per-watch deadline.
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPoller(service *Service, logger *slog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		service:  service,
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watch streams the user's job state on every status change until the job is
// terminal, the per-watch deadline passes, or ctx is cancelled. The returned
// channel is closed when the watch ends. Poll errors are logged and the watch
// keeps going; a transient vendor failure must not kill the stream.
func (p *Poller) Watch(ctx context.Context, userID id.UserID) <-chan *verification.Job {
	updates := make(chan *verification.Job, 1)

	go func() {
		defer close(updates)

		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var last verification.ChannelStatus
		for {
			job, err := p.service.GetVerificationStatus(ctx, userID)
			if err != nil {
				p.logger.Warn("poll cycle failed", "user_id", userID.String(), "error", err)
			} else if job == nil {
				// Nothing to watch.
				return
			} else {
				if job.Status != last {
					last = job.Status
					select {
					case updates <- job:
					case <-ctx.Done():
						return
					}
				}
				if job.Terminal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				p.logger.Info("poll watch ended", "user_id", userID.String(), "reason", ctx.Err())
				return
			case <-ticker.C:
			}
		}
	}()

	return updates
}
