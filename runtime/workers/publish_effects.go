package workers

import (
	"context"
	"log/slog"
	"time"

	"emolab/contract"
)

// PublishEffects drains the trailing effects of approvals: whisper
// dispatch and floor release. The publish itself is already durable; this
// worker only repairs what follows it and requeues jobs that fail,
// backing off until maxAttempts.
type PublishEffects struct {
	Log         *slog.Logger
	Jobs        chan contract.PublishEffect
	run         func(ctx context.Context, job contract.PublishEffect) error
	maxAttempts int
	retryDelay  time.Duration
}

func NewPublishEffects(log *slog.Logger, jobs chan contract.PublishEffect,
	run func(ctx context.Context, job contract.PublishEffect) error,
	maxAttempts int, retryDelay time.Duration) *PublishEffects {
	return &PublishEffects{
		Log:         log,
		Jobs:        jobs,
		run:         run,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

func (w *PublishEffects) Run(ctx context.Context) error {
	for {
		select {
		case job := <-w.Jobs:
			w.handle(ctx, job)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping publish effects")
			return nil
		}
	}
}

func (w *PublishEffects) handle(ctx context.Context, job contract.PublishEffect) {
	err := w.run(ctx, job)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		w.Log.Error("Publish effects abandoned",
			slog.String("message", job.MessageID.String()),
			slog.Int("attempts", job.Attempts),
			slog.Any("error", err))
		return
	}

	w.Log.Warn("Publish effects incomplete, requeueing",
		slog.String("message", job.MessageID.String()),
		slog.Int("attempts", job.Attempts),
		slog.Any("error", err))

	// Requeue after a delay without blocking the drain loop.
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
			select {
			case w.Jobs <- job:
			default:
				w.Log.Error("Publish effect lost, queue full",
					slog.String("message", job.MessageID.String()))
			}
		}
	}()
}
