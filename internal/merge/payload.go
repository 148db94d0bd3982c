// Package merge applies decoded payload fragments from the remote chat
// service to the local cache, upserting users, members, channels, messages
// and the current user in dependency order.
package merge

import (
	"encoding/json"
	"time"
)

// UserPayload is a decoded user fragment.
type UserPayload struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Online       bool            `json:"online"`
	Banned       bool            `json:"banned"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastActiveAt *time.Time      `json:"last_active_at"`
	ExtraData    json.RawMessage `json:"extra_data"`
}

// MemberPayload is a decoded channel-membership fragment. The embedded user
// is mandatory: a member save fails when its user cannot be saved.
type MemberPayload struct {
	User      *UserPayload `json:"user"`
	Role      string       `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ChannelConfigPayload is the configuration snapshot carried by a channel
// fragment.
type ChannelConfigPayload struct {
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	TypingEvents     bool      `json:"typing_events"`
	ReadEvents       bool      `json:"read_events"`
	Replies          bool      `json:"replies"`
	Reactions        bool      `json:"reactions"`
	Uploads          bool      `json:"uploads"`
	URLEnrichment    bool      `json:"url_enrichment"`
	MessageRetention string    `json:"message_retention"`
	MaxMessageLength int       `json:"max_message_length"`
	Commands         []string  `json:"commands"`
}

// ChannelPayload is a decoded channel fragment. It may embed the creator,
// a partial member list and a page of messages.
type ChannelPayload struct {
	CID           string               `json:"cid"`
	Frozen        bool                 `json:"frozen"`
	Team          string               `json:"team"`
	MemberCount   int                  `json:"member_count"`
	LastMessageAt *time.Time           `json:"last_message_at"`
	CreatedAt     *time.Time           `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	DeletedAt     *time.Time           `json:"deleted_at"`
	Config        ChannelConfigPayload `json:"config"`
	CreatedBy     *UserPayload         `json:"created_by"`
	Members       []MemberPayload      `json:"members"`
	Messages      []MessagePayload     `json:"messages"`
	ExtraData     json.RawMessage      `json:"extra_data"`
}

// MessagePayload is a decoded message fragment. It carries no reliable
// channel identity of its own; the owning channel cid comes from context.
type MessagePayload struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	User      *UserPayload    `json:"user"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExtraData json.RawMessage `json:"extra_data"`
}

// CurrentUserPayload is a decoded fragment for the authenticated principal.
// Unread counts are overwritten only when present.
type CurrentUserPayload struct {
	User           UserPayload `json:"user"`
	UnreadChannels *int        `json:"unread_channels"`
	UnreadMessages *int        `json:"unread_messages"`
}

// EventPayload is a decoded event from the remote feed. Whichever sub-payloads
// are present are applied in the fixed order user, member, channel, current
// user, message.
type EventPayload struct {
	Type        string              `json:"type"`
	CID         string              `json:"cid"`
	User        *UserPayload        `json:"user"`
	Member      *MemberPayload      `json:"member"`
	Channel     *ChannelPayload     `json:"channel"`
	CurrentUser *CurrentUserPayload `json:"me"`
	Message     *MessagePayload     `json:"message"`
	CreatedAt   time.Time           `json:"created_at"`
}
