package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/gnomegl/teleinvite/internal/types"
)

const dialogsPageSize = 100

// Account implements invite.Account on top of the raw API client.
type Account struct {
	api   *tg.Client
	self  int64
	log   *zap.Logger
	retry *retrier
}

// Conversations lists the channels and supergroups in the account's
// dialogs, walking the dialog list by offset date.
func (a *Account) Conversations(ctx context.Context) ([]types.Conversation, error) {
	var (
		all        []types.Conversation
		seen       = make(map[int64]bool)
		offsetDate int
	)

	for {
		var resp tg.MessagesDialogsClass
		err := a.retry.do(ctx, "messages.getDialogs", func(ctx context.Context) error {
			var err error
			resp, err = a.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
				OffsetDate: offsetDate,
				OffsetPeer: &tg.InputPeerEmpty{},
				Limit:      dialogsPageSize,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get dialogs: %w", err)
		}

		page := parseDialogs(resp)
		for _, c := range page.conversations {
			if !seen[c.ID] {
				seen[c.ID] = true
				all = append(all, c)
			}
		}
		a.log.Debug("Fetched dialogs", zap.Int("dialogs", page.dialogs), zap.Int("conversations", len(all)))

		if page.last || page.nextDate == 0 || page.nextDate == offsetDate {
			return all, nil
		}
		offsetDate = page.nextDate
	}
}

type dialogsPage struct {
	conversations []types.Conversation
	dialogs       int
	nextDate      int
	last          bool
}

func parseDialogs(resp tg.MessagesDialogsClass) dialogsPage {
	var (
		page     dialogsPage
		chats    []tg.ChatClass
		messages []tg.MessageClass
	)

	switch r := resp.(type) {
	case *tg.MessagesDialogs:
		chats, messages = r.Chats, r.Messages
		page.dialogs = len(r.Dialogs)
		page.last = true
	case *tg.MessagesDialogsSlice:
		chats, messages = r.Chats, r.Messages
		page.dialogs = len(r.Dialogs)
		page.last = len(r.Dialogs) < dialogsPageSize
	default:
		page.last = true
		return page
	}

	for _, c := range chats {
		if ch, ok := c.(*tg.Channel); ok {
			page.conversations = append(page.conversations, toConversation(ch))
		}
	}

	for _, m := range messages {
		var date int
		switch msg := m.(type) {
		case *tg.Message:
			date = msg.Date
		case *tg.MessageService:
			date = msg.Date
		}
		if date > 0 && (page.nextDate == 0 || date < page.nextDate) {
			page.nextDate = date
		}
	}
	return page
}

func toConversation(ch *tg.Channel) types.Conversation {
	return types.Conversation{
		ID:           ch.ID,
		AccessHash:   ch.AccessHash,
		Title:        ch.Title,
		Username:     ch.Username,
		Megagroup:    ch.Megagroup,
		Broadcast:    ch.Broadcast,
		Participants: ch.ParticipantsCount,
	}
}

func inputChannel(c types.Conversation) *tg.InputChannel {
	return &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash}
}

func (a *Account) Members(ctx context.Context, conv types.Conversation, offset, limit int) (types.Page, error) {
	var resp tg.ChannelsChannelParticipantsClass
	err := a.retry.do(ctx, "channels.getParticipants", func(ctx context.Context) error {
		var err error
		resp, err = a.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: inputChannel(conv),
			Filter:  &tg.ChannelParticipantsSearch{Q: ""},
			Offset:  offset,
			Limit:   limit,
			Hash:    0,
		})
		return err
	})
	if err != nil {
		return types.Page{}, err
	}
	return parseParticipants(resp, a.self), nil
}

func parseParticipants(resp tg.ChannelsChannelParticipantsClass, self int64) types.Page {
	r, ok := resp.(*tg.ChannelsChannelParticipants)
	if !ok {
		return types.Page{}
	}

	users := make(map[int64]*tg.User, len(r.Users))
	for _, u := range r.Users {
		if user, ok := u.(*tg.User); ok {
			users[user.ID] = user
		}
	}

	page := types.Page{
		Fetched: len(r.Participants),
		Total:   r.Count,
	}
	for _, p := range r.Participants {
		var (
			userID      int64
			admin, isMe bool
		)
		switch part := p.(type) {
		case *tg.ChannelParticipant:
			userID = part.UserID
		case *tg.ChannelParticipantSelf:
			userID, isMe = part.UserID, true
		case *tg.ChannelParticipantCreator:
			userID, admin = part.UserID, true
		case *tg.ChannelParticipantAdmin:
			userID, admin = part.UserID, true
		default:
			// banned and left participants
			continue
		}

		user, ok := users[userID]
		if !ok {
			continue
		}
		m := toMember(user)
		m.Admin = admin
		m.Self = isMe || user.Self || user.ID == self
		page.Members = append(page.Members, m)
	}
	return page
}

func toMember(u *tg.User) types.Member {
	return types.Member{
		ID:         u.ID,
		AccessHash: u.AccessHash,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Bot:        u.Bot,
		Deleted:    u.Deleted,
		Self:       u.Self,
	}
}

// Invite adds members to target in one request and returns the IDs the
// server did not report as missing.
func (a *Account) Invite(ctx context.Context, target types.Conversation, members []types.Member) ([]int64, error) {
	users := make([]tg.InputUserClass, len(members))
	for i, m := range members {
		users[i] = &tg.InputUser{UserID: m.ID, AccessHash: m.AccessHash}
	}

	var resp *tg.MessagesInvitedUsers
	err := a.retry.do(ctx, "channels.inviteToChannel", func(ctx context.Context) error {
		var err error
		resp, err = a.api.ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
			Channel: inputChannel(target),
			Users:   users,
		})
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	accepted := acceptedIDs(types.MemberIDs(members), resp)
	if missing := len(members) - len(accepted); missing > 0 {
		a.log.Debug("Invitees missing", zap.Int64("target", target.ID), zap.Int("missing", missing))
	}
	return accepted, nil
}

func acceptedIDs(requested []int64, resp *tg.MessagesInvitedUsers) []int64 {
	if resp == nil || len(resp.MissingInvitees) == 0 {
		return requested
	}
	missing := make(map[int64]bool, len(resp.MissingInvitees))
	for _, m := range resp.MissingInvitees {
		missing[m.UserID] = true
	}
	accepted := make([]int64, 0, len(requested))
	for _, id := range requested {
		if !missing[id] {
			accepted = append(accepted, id)
		}
	}
	return accepted
}
