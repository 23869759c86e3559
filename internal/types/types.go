package types

import "fmt"

// Conversation is a channel or supergroup visible to an account.
type Conversation struct {
	ID           int64  `json:"id"`
	AccessHash   int64  `json:"access_hash"`
	Title        string `json:"title"`
	Username     string `json:"username,omitempty"`
	Megagroup    bool   `json:"megagroup"`
	Broadcast    bool   `json:"broadcast"`
	Participants int    `json:"participants_count"`
}

// FullID returns the Bot API style identifier (-100<id>).
func (c Conversation) FullID() string {
	return fmt.Sprintf("-100%d", c.ID)
}

func (c Conversation) String() string {
	if c.Username != "" {
		return fmt.Sprintf("%s (@%s)", c.Title, c.Username)
	}
	return c.Title
}

type Member struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Bot        bool   `json:"bot"`
	Deleted    bool   `json:"deleted"`
	Admin      bool   `json:"admin"`
	Self       bool   `json:"self"`
}

// Page is one slice of a participant listing. Fetched counts every
// participant the server returned, including ones that could not be
// mapped to a Member, and is what the next offset advances by.
type Page struct {
	Members []Member
	Fetched int
	Total   int
}

func MemberIDs(members []Member) []int64 {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
