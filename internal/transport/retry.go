package transport

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/retry"
)

// RetrySender resends failed commands with backoff. Validation failures are
// returned immediately since resending cannot fix them.
type RetrySender struct {
	Next   Sender
	Policy retry.Policy
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrySender(next Sender, policy retry.Policy) *RetrySender {
	return &RetrySender{Next: next, Policy: policy, Sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RetrySender) Send(ctx context.Context, cmd Command) error {
	err := r.Next.Send(ctx, cmd)
	for attempt := 1; err != nil && attempt <= r.Policy.MaxRetries; attempt++ {
		if errors.HasCategory(err, errors.CategoryValidation) {
			return err
		}
		delay := r.Policy.Delay(attempt)
		slog.Warn("Transport command failed, retrying",
			slog.String("action", string(cmd.Action)),
			logfields.Server(cmd.Server),
			slog.Int("attempt", attempt),
			logfields.Delay(delay),
			logfields.Error(err))
		if serr := r.Sleep(ctx, delay); serr != nil {
			return errors.WrapError(err, errors.CategoryTransport, "command retry canceled").
				WithContext("action", string(cmd.Action)).Build()
		}
		err = r.Next.Send(ctx, cmd)
	}
	return err
}
