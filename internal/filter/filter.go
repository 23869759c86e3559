package filter

import (
	"sync"

	"github.com/gnomegl/teleinvite/internal/types"
)

// Skip reasons reported by the built-in filters.
const (
	ReasonAdmin   = "admin"
	ReasonBot     = "bot"
	ReasonDeleted = "deleted"
	ReasonSelf    = "self"
	ReasonExclude = "excluded"
	ReasonInvited = "already invited"
	ReasonSeen    = "seen"
)

type MemberFilter interface {
	ShouldInvite(m types.Member) (bool, string)
}

type FilterManager struct {
	filters []MemberFilter
}

func NewFilterManager(filters ...MemberFilter) *FilterManager {
	return &FilterManager{filters: filters}
}

// Default builds the filter chain used by invite runs: admins, bots,
// deleted accounts and the account itself are never invited, nor are
// excluded IDs or users recorded in invited.
func Default(exclude []int64, invited *IDSet) *FilterManager {
	fs := []MemberFilter{
		RoleFilter{},
		BotFilter{},
		DeletedFilter{},
		SelfFilter{},
	}
	if len(exclude) > 0 {
		fs = append(fs, &ExcludeFilter{IDs: NewIDSet(exclude...), Reason: ReasonExclude})
	}
	if invited != nil {
		fs = append(fs, &ExcludeFilter{IDs: invited, Reason: ReasonInvited})
	}
	return NewFilterManager(fs...)
}

func (fm *FilterManager) Add(f MemberFilter) {
	fm.filters = append(fm.filters, f)
}

// ShouldInvite runs all filters in order; the first rejection wins.
func (fm *FilterManager) ShouldInvite(m types.Member) (bool, string) {
	for _, f := range fm.filters {
		if ok, reason := f.ShouldInvite(m); !ok {
			return false, reason
		}
	}
	return true, ""
}

// Apply splits members into the ones to invite and a tally of skip reasons.
func (fm *FilterManager) Apply(members []types.Member) ([]types.Member, map[string]int) {
	eligible := make([]types.Member, 0, len(members))
	skipped := make(map[string]int)
	for _, m := range members {
		if ok, reason := fm.ShouldInvite(m); ok {
			eligible = append(eligible, m)
		} else {
			skipped[reason]++
		}
	}
	return eligible, skipped
}

// RoleFilter rejects creators and administrators.
type RoleFilter struct{}

func (RoleFilter) ShouldInvite(m types.Member) (bool, string) {
	return !m.Admin, ReasonAdmin
}

type BotFilter struct{}

func (BotFilter) ShouldInvite(m types.Member) (bool, string) {
	return !m.Bot, ReasonBot
}

type DeletedFilter struct{}

func (DeletedFilter) ShouldInvite(m types.Member) (bool, string) {
	return !m.Deleted, ReasonDeleted
}

type SelfFilter struct{}

func (SelfFilter) ShouldInvite(m types.Member) (bool, string) {
	return !m.Self, ReasonSelf
}

type ExcludeFilter struct {
	IDs    *IDSet
	Reason string
}

func (f *ExcludeFilter) ShouldInvite(m types.Member) (bool, string) {
	return !f.IDs.Has(m.ID), f.Reason
}

// IDSet is a set of user IDs safe for concurrent use.
type IDSet struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewIDSet(ids ...int64) *IDSet {
	s := &IDSet{ids: make(map[int64]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

func (s *IDSet) Add(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

func (s *IDSet) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
