package store

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("store: invalid user id")
	// ErrInvalidChannelCID indicates that a channel identifier is not a "type:id" pair.
	ErrInvalidChannelCID = errors.New("store: invalid channel cid")
	// ErrInvalidMessageID indicates that a message identifier is empty or exceeds storage bounds.
	ErrInvalidMessageID = errors.New("store: invalid message id")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// MessageID represents a validated message identifier.
type MessageID string

// NewMessageID validates raw input and returns a MessageID.
func NewMessageID(rawInput string) (MessageID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidMessageID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidMessageID, maxIdentifierLength)
	}
	return MessageID(trimmed), nil
}

// String returns the underlying string identifier.
func (id MessageID) String() string {
	return string(id)
}

// ChannelCID represents a validated channel identifier of the form "type:id",
// e.g. "messaging:general".
type ChannelCID string

// ParseChannelCID validates raw input and returns a ChannelCID.
func ParseChannelCID(rawInput string) (ChannelCID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidChannelCID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidChannelCID, maxIdentifierLength)
	}
	segments := strings.SplitN(trimmed, ":", 2)
	if len(segments) != 2 || strings.TrimSpace(segments[0]) == "" || strings.TrimSpace(segments[1]) == "" {
		return "", fmt.Errorf("%w: %q is not a type:id pair", ErrInvalidChannelCID, trimmed)
	}
	return ChannelCID(trimmed), nil
}

// Type returns the channel type segment of the identifier.
func (cid ChannelCID) Type() string {
	segments := strings.SplitN(string(cid), ":", 2)
	return segments[0]
}

// ID returns the channel id segment of the identifier.
func (cid ChannelCID) ID() string {
	segments := strings.SplitN(string(cid), ":", 2)
	if len(segments) != 2 {
		return ""
	}
	return segments[1]
}

// String returns the underlying string identifier.
func (cid ChannelCID) String() string {
	return string(cid)
}

// MemberID is the stable composite identity of a channel membership. The same
// (channel, user) pair always resolves to the same MemberID regardless of
// which payload fragment carried it.
type MemberID string

// NewMemberID derives the composite member identity, channel first.
func NewMemberID(cid ChannelCID, userID UserID) MemberID {
	return MemberID(cid.String() + ":" + userID.String())
}

// String returns the underlying string identifier.
func (id MemberID) String() string {
	return string(id)
}
