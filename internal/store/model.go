package store

import "time"

// Role vocabulary for users and channel memberships. Unknown values arriving
// in payloads are replaced by the defaults below rather than failing the save.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleGuest     = "guest"
	RoleAnonymous = "anonymous"

	ChannelRoleMember    = "member"
	ChannelRoleModerator = "moderator"
	ChannelRoleOwner     = "owner"

	// DefaultUserRole is substituted when a user payload carries an
	// unrecognized role.
	DefaultUserRole = RoleUser
	// DefaultChannelRole is substituted when a member payload carries an
	// unrecognized channel role.
	DefaultChannelRole = ChannelRoleMember
)

// DefaultExtraData is the serialized default stored when an extra-data blob
// fails to decode.
const DefaultExtraData = "{}"

// CurrentUserSlot is the well-known identity of the singleton current-user
// record. At most one row ever exists under this key.
const CurrentUserSlot = "current"

// User is the shared user record. Users are referenced, never owned: member,
// channel creator, current-user and message-author saves all resolve into the
// same row via UserID. This layer never deletes a user.
type User struct {
	UserID       string     `gorm:"column:user_id;primaryKey;size:190;not null"`
	Role         string     `gorm:"column:role;size:32;not null;default:''"`
	Online       bool       `gorm:"column:online;not null;default:false"`
	Banned       bool       `gorm:"column:banned;not null;default:false"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	LastActiveAt *time.Time `gorm:"column:last_active_at"`
	ExtraData    string     `gorm:"column:extra_data;type:text;not null;default:'{}'"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Member is a per-channel membership keyed by the composite (channel, user)
// identity. A member never exists without a resolvable user.
type Member struct {
	ChannelCID      string    `gorm:"column:channel_cid;primaryKey;size:190;not null"`
	UserID          string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	MemberID        string    `gorm:"column:member_id;size:382;not null;index"`
	ChannelRole     string    `gorm:"column:channel_role;size:32;not null;default:''"`
	MemberCreatedAt time.Time `gorm:"column:member_created_at"`
	MemberUpdatedAt time.Time `gorm:"column:member_updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Member) TableName() string {
	return "members"
}

// ChannelConfig is the configuration snapshot embedded in a channel record:
// feature flags, retention policy and the command list (serialized JSON).
type ChannelConfig struct {
	CreatedAt        time.Time `gorm:"column:config_created_at"`
	UpdatedAt        time.Time `gorm:"column:config_updated_at"`
	TypingEvents     bool      `gorm:"column:config_typing_events;not null;default:false"`
	ReadEvents       bool      `gorm:"column:config_read_events;not null;default:false"`
	Replies          bool      `gorm:"column:config_replies;not null;default:false"`
	Reactions        bool      `gorm:"column:config_reactions;not null;default:false"`
	Uploads          bool      `gorm:"column:config_uploads;not null;default:false"`
	URLEnrichment    bool      `gorm:"column:config_url_enrichment;not null;default:false"`
	MessageRetention string    `gorm:"column:config_message_retention;size:64;not null;default:''"`
	MaxMessageLength int       `gorm:"column:config_max_message_length;not null;default:0"`
	CommandsJSON     string    `gorm:"column:config_commands;type:text;not null;default:'[]'"`
}

// Channel is a locally cached channel. MemberCount is authoritative even when
// fewer member rows are cached than the count reports.
type Channel struct {
	CID           string        `gorm:"column:cid;primaryKey;size:190;not null"`
	ChannelType   string        `gorm:"column:channel_type;size:64;not null"`
	Frozen        bool          `gorm:"column:frozen;not null;default:false"`
	Team          string        `gorm:"column:team;size:190;not null;default:''"`
	MemberCount   int           `gorm:"column:member_count;not null;default:0"`
	LastMessageAt *time.Time    `gorm:"column:last_message_at"`
	CreatedAt     time.Time     `gorm:"column:created_at"`
	UpdatedAt     time.Time     `gorm:"column:updated_at"`
	DeletedAt     *time.Time    `gorm:"column:deleted_at"`
	CreatedByID   string        `gorm:"column:created_by_id;size:190;not null;default:''"`
	Config        ChannelConfig `gorm:"embedded"`
	ExtraData     string        `gorm:"column:extra_data;type:text;not null;default:'{}'"`
}

// TableName provides the explicit table binding for GORM.
func (Channel) TableName() string {
	return "channels"
}

// Message is a cached message. It belongs to exactly one channel; a message
// whose channel cannot be resolved is rejected at save time, never stored.
type Message struct {
	MessageID  string    `gorm:"column:message_id;primaryKey;size:190;not null"`
	ChannelCID string    `gorm:"column:channel_cid;size:190;not null;index:idx_messages_channel_created,priority:1"`
	AuthorID   string    `gorm:"column:author_id;size:190;not null;default:''"`
	Text       string    `gorm:"column:text;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_messages_channel_created,priority:2"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
	ExtraData  string    `gorm:"column:extra_data;type:text;not null;default:'{}'"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// CurrentUser is the singleton record for the authenticated principal, keyed
// by CurrentUserSlot. Saving a new one updates the existing row.
type CurrentUser struct {
	Slot           string    `gorm:"column:slot;primaryKey;size:32;not null"`
	UserID         string    `gorm:"column:user_id;size:190;not null"`
	UnreadChannels int       `gorm:"column:unread_channels;not null;default:0"`
	UnreadMessages int       `gorm:"column:unread_messages;not null;default:0"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (CurrentUser) TableName() string {
	return "current_user"
}
