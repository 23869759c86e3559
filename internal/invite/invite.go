package invite

import (
	"context"
	"errors"

	"github.com/gnomegl/teleinvite/internal/types"
)

var (
	// ErrAccountLimited means the platform refuses further invitations from
	// the account for now (peer flood, long flood waits).
	ErrAccountLimited = errors.New("account is limited")
	// ErrNoInviteRights means the account cannot add members to the target.
	ErrNoInviteRights = errors.New("no rights to invite to the target group")
	// ErrBatchRejected means this batch was refused but later ones may pass.
	ErrBatchRejected = errors.New("invitation batch rejected")
	// ErrTargetFull means the target group cannot take more members.
	ErrTargetFull = errors.New("target group is full")

	ErrTargetNotFound = errors.New("target group not found among the account's conversations")
	ErrInterrupted    = errors.New("interrupted")
)

// Account is a connected, authorised user account.
type Account interface {
	Conversations(ctx context.Context) ([]types.Conversation, error)
	Members(ctx context.Context, conv types.Conversation, offset, limit int) (types.Page, error)
	// Invite adds members to target and returns the IDs that were accepted.
	Invite(ctx context.Context, target types.Conversation, members []types.Member) ([]int64, error)
}

// Opener connects the named session, calls fn while connected and
// disconnects when fn returns.
type Opener interface {
	Open(ctx context.Context, session string, fn func(ctx context.Context, acct Account) error) error
}

type Reporter interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	Notice(format string, args ...any)
	Invited(session string, total, limit int)
}

// Ledger remembers accepted invitations across runs.
type Ledger interface {
	InvitedUsers(ctx context.Context, targetID int64) ([]int64, error)
	RecordInvites(ctx context.Context, runID string, targetID, sourceID int64, session string, userIDs []int64) error
}

type Status string

const (
	StatusDone     Status = "done"
	StatusCapped   Status = "capped"
	StatusSkipped  Status = "skipped"
	StatusDeclined Status = "declined"
	StatusLimited  Status = "limited"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
)

// Result describes what happened with one account.
type Result struct {
	Session string
	Status  Status
	Invited int
	Sources int
	Err     error
}

type Summary struct {
	Results []Result
}

func (s Summary) Invited() int {
	var n int
	for _, r := range s.Results {
		n += r.Invited
	}
	return n
}
