package invite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gnomegl/teleinvite/internal/filter"
	"github.com/gnomegl/teleinvite/internal/types"
)

const (
	DefaultCap      = 1000
	DefaultPageSize = 100
)

// Runner drives the invitation loop over a list of account sessions.
type Runner struct {
	Opener     Opener
	Reporter   Reporter
	Ledger     Ledger
	Interrupts *Interrupter
	Logger     *zap.Logger
	// Confirm is asked before each session; a false answer skips it.
	Confirm func(session string) (bool, error)

	RunID    string
	TargetID int64
	Cap      int
	PageSize int
	Delay    time.Duration
	DryRun   bool
	Exclude  []int64
}

// state is shared by all accounts of one run.
type state struct {
	filters *filter.FilterManager
	invited *filter.IDSet
	seen    *filter.IDSet
}

func (r *Runner) Run(ctx context.Context, sessions []string) (Summary, error) {
	var summary Summary
	r.setDefaults()

	st, err := r.newState(ctx)
	if err != nil {
		return summary, err
	}

	for _, session := range sessions {
		if ctx.Err() != nil {
			break
		}

		r.Reporter.Info("Current session: %s", session)
		if r.Confirm != nil {
			ok, err := r.Confirm(session)
			if err != nil {
				if ctx.Err() != nil {
					return summary, context.Cause(ctx)
				}
				return summary, err
			}
			if !ok {
				summary.Results = append(summary.Results, Result{Session: session, Status: StatusDeclined})
				continue
			}
		}

		res := r.runAccount(ctx, session, st)
		summary.Results = append(summary.Results, res)
		if errors.Is(res.Err, ErrTargetFull) {
			return summary, res.Err
		}
	}

	if ctx.Err() != nil {
		return summary, context.Cause(ctx)
	}
	return summary, nil
}

func (r *Runner) setDefaults() {
	if r.Cap <= 0 {
		r.Cap = DefaultCap
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
}

func (r *Runner) newState(ctx context.Context) (*state, error) {
	st := &state{
		invited: filter.NewIDSet(),
		seen:    filter.NewIDSet(),
	}
	if r.Ledger != nil {
		ids, err := r.Ledger.InvitedUsers(ctx, r.TargetID)
		if err != nil {
			return nil, fmt.Errorf("error loading invite history: %w", err)
		}
		st.invited.Add(ids...)
		r.Logger.Info("Loaded invite history", zap.Int64("target", r.TargetID), zap.Int("users", len(ids)))
	}
	st.filters = filter.Default(r.Exclude, st.invited)
	st.filters.Add(&filter.ExcludeFilter{IDs: st.seen, Reason: filter.ReasonSeen})
	return st, nil
}

func (r *Runner) runAccount(ctx context.Context, session string, st *state) Result {
	actx, release := ctx, func() {}
	if r.Interrupts != nil {
		actx, release = r.Interrupts.Arm(ctx)
	}
	defer release()

	res := Result{Session: session}
	log := r.Logger.With(zap.String("session", session))

	r.Reporter.Info("Trying to start client")
	err := r.Opener.Open(actx, session, func(ctx context.Context, acct Account) error {
		r.Reporter.Info("Successfully logged in as: %s", session)
		return r.inviteFrom(ctx, acct, session, st, &res)
	})
	r.Reporter.Info("Trying to stop client")

	switch {
	case Skipped(ctx, actx):
		res.Status = StatusSkipped
		r.Reporter.Info("Trying to change client")
	case ctx.Err() != nil:
		res.Status = StatusAborted
		res.Err = context.Cause(ctx)
	case err == nil:
		if res.Invited >= r.Cap {
			res.Status = StatusCapped
			r.Reporter.Info("Trying to change client because: telegram limitation for this client was applied")
		} else {
			res.Status = StatusDone
		}
	case errors.Is(err, ErrAccountLimited):
		res.Status = StatusLimited
		res.Err = err
		r.Reporter.Warning("Trying to change client because: %v", err)
	default:
		res.Status = StatusFailed
		res.Err = err
		r.Reporter.Error("Session %s failed: %v", session, err)
	}

	log.Info("Account finished",
		zap.String("status", string(res.Status)),
		zap.Int("invited", res.Invited),
		zap.Int("sources", res.Sources),
		zap.Error(res.Err),
	)
	return res
}

func (r *Runner) inviteFrom(ctx context.Context, acct Account, session string, st *state, res *Result) error {
	convs, err := acct.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("error listing conversations: %w", err)
	}

	target, ok := FindConversation(convs, r.TargetID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrTargetNotFound, r.TargetID)
	}

	sources := Sources(convs, target.ID)
	r.Reporter.Info("Found %d groups to collect members from", len(sources))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Invited >= r.Cap {
			return nil
		}

		res.Sources++
		err := r.inviteFromSource(ctx, acct, session, target, src, st, res)
		switch {
		case err == nil:
		case ctx.Err() != nil,
			errors.Is(err, ErrAccountLimited),
			errors.Is(err, ErrNoInviteRights),
			errors.Is(err, ErrTargetFull):
			return err
		default:
			r.Reporter.Warning("Skipping %s: %v", src, err)
			r.Logger.Warn("Source skipped",
				zap.String("session", session),
				zap.Int64("source", src.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *Runner) inviteFromSource(ctx context.Context, acct Account, session string, target, src types.Conversation, st *state, res *Result) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Invited >= r.Cap {
			return nil
		}

		page, err := acct.Members(ctx, src, offset, r.PageSize)
		if err != nil {
			return fmt.Errorf("error listing members: %w", err)
		}
		if page.Fetched == 0 {
			return nil
		}
		offset += page.Fetched
		last := page.Total > 0 && offset >= page.Total

		eligible, skipped := st.filters.Apply(page.Members)
		if remaining := r.Cap - res.Invited; len(eligible) > remaining {
			eligible = eligible[:remaining]
		}
		r.Logger.Debug("Fetched members",
			zap.String("session", session),
			zap.Int64("source", src.ID),
			zap.Int("offset", offset),
			zap.Int("eligible", len(eligible)),
			zap.Any("skipped", skipped),
		)

		if len(eligible) > 0 {
			if err := r.inviteBatch(ctx, acct, session, target, src, eligible, st, res); err != nil {
				return err
			}
		}

		if last {
			return nil
		}
	}
}

// inviteBatch marks users seen only once Telegram has answered for them, so
// a batch lost to a limited or interrupted account is retried by the next one.
func (r *Runner) inviteBatch(ctx context.Context, acct Account, session string, target, src types.Conversation, batch []types.Member, st *state, res *Result) error {
	r.Reporter.Notice("Try to add %d users", len(batch))
	if r.DryRun {
		st.seen.Add(types.MemberIDs(batch)...)
		return nil
	}

	accepted, err := acct.Invite(ctx, target, batch)
	if err != nil {
		if errors.Is(err, ErrBatchRejected) {
			st.seen.Add(types.MemberIDs(batch)...)
			r.Reporter.Warning("%v", err)
			return sleep(ctx, r.Delay)
		}
		return err
	}

	st.seen.Add(accepted...)
	st.invited.Add(accepted...)
	res.Invited += len(accepted)
	r.Reporter.Success("%d users invited", len(accepted))
	r.Reporter.Invited(session, res.Invited, r.Cap)

	if r.Ledger != nil && len(accepted) > 0 {
		// Accepted invitations are recorded even when the account was just interrupted.
		if err := r.Ledger.RecordInvites(context.WithoutCancel(ctx), r.RunID, target.ID, src.ID, session, accepted); err != nil {
			r.Reporter.Warning("Could not record invitations: %v", err)
			r.Logger.Error("Ledger write failed", zap.String("session", session), zap.Error(err))
		}
	}

	return sleep(ctx, r.Delay)
}

// FindConversation looks up a conversation by bare channel ID.
func FindConversation(convs []types.Conversation, id int64) (types.Conversation, bool) {
	for _, c := range convs {
		if c.ID == id {
			return c, true
		}
	}
	return types.Conversation{}, false
}

// Sources returns the groups members are collected from: every megagroup
// except the target itself.
func Sources(convs []types.Conversation, targetID int64) []types.Conversation {
	var out []types.Conversation
	for _, c := range convs {
		if c.Megagroup && c.ID != targetID {
			out = append(out, c)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
