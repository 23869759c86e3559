package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"github.com/gnomegl/teleinvite/internal/invite"
)

var (
	limitedErrors = []string{
		"PEER_FLOOD",
	}
	targetFullErrors = []string{
		"USERS_TOO_MUCH",
		"CHANNELS_TOO_MUCH",
	}
	noRightsErrors = []string{
		"CHAT_ADMIN_REQUIRED",
		"CHAT_WRITE_FORBIDDEN",
		"USER_BANNED_IN_CHANNEL",
		"CHANNEL_PRIVATE",
		"CHANNEL_INVALID",
	}
	rejectedErrors = []string{
		"USER_PRIVACY_RESTRICTED",
		"USER_NOT_MUTUAL_CONTACT",
		"USER_CHANNELS_TOO_MUCH",
		"USER_KICKED",
		"USER_ID_INVALID",
		"INPUT_USER_DEACTIVATED",
		"USER_BOT",
		"BOT_GROUPS_BLOCKED",
		"USER_BLOCKED",
	}
)

// classify maps RPC errors onto the invite package sentinels. Errors that
// match none are returned as is.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case tgerr.Is(err, limitedErrors...):
		return fmt.Errorf("%w: %w", invite.ErrAccountLimited, err)
	case tgerr.Is(err, targetFullErrors...):
		return fmt.Errorf("%w: %w", invite.ErrTargetFull, err)
	case tgerr.Is(err, noRightsErrors...):
		return fmt.Errorf("%w: %w", invite.ErrNoInviteRights, err)
	case tgerr.Is(err, rejectedErrors...):
		return fmt.Errorf("%w: %w", invite.ErrBatchRejected, err)
	}
	return err
}

type retrier struct {
	maxFloodWait time.Duration
	retries      uint64
	log          *zap.Logger
	// newBackOff is replaced in tests.
	newBackOff func() backoff.BackOff
}

func newRetrier(maxFloodWait time.Duration, retries uint64, log *zap.Logger) *retrier {
	return &retrier{
		maxFloodWait: maxFloodWait,
		retries:      retries,
		log:          log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// do calls fn until it succeeds, fails permanently or the retry budget is
// spent. FLOOD_WAIT up to maxFloodWait is slept through; server side
// errors and transport errors are retried with exponential backoff.
func (r *retrier) do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		if wait, ok := tgerr.AsFloodWait(err); ok {
			if wait > r.maxFloodWait {
				return backoff.Permanent(fmt.Errorf("%w: flood wait of %s", invite.ErrAccountLimited, wait))
			}
			r.log.Warn("Flood wait", zap.String("method", method), zap.Duration("wait", wait))
			if err := sleep(ctx, wait); err != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		if rpcErr, ok := tgerr.As(err); ok {
			if rpcErr.Code >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.retries), ctx)
	notify := func(err error, next time.Duration) {
		r.log.Debug("Retrying request",
			zap.String("method", method),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, b, notify)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
