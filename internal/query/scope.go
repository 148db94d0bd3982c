// Package query tracks which locally cached channels belong to which named
// query result sets. The query evaluator itself lives outside this layer; this
// package only attaches and detaches channel identities to scopes it is given.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxScopeNameLength = 190

// ErrInvalidScope indicates that a scope name is empty or exceeds storage bounds.
var ErrInvalidScope = errors.New("query: invalid scope name")

// Scope names an externally defined channel-list query.
type Scope struct {
	name string
}

// NewScope validates raw input and returns a Scope.
func NewScope(rawName string) (Scope, error) {
	trimmed := strings.TrimSpace(rawName)
	if trimmed == "" {
		return Scope{}, fmt.Errorf("%w: empty", ErrInvalidScope)
	}
	if len(trimmed) > maxScopeNameLength {
		return Scope{}, fmt.Errorf("%w: exceeds %d characters", ErrInvalidScope, maxScopeNameLength)
	}
	return Scope{name: trimmed}, nil
}

// Name returns the scope's name.
func (s Scope) Name() string {
	return s.name
}

// ScopeChannel records the attachment of one channel to one scope.
type ScopeChannel struct {
	ScopeName  string    `gorm:"column:scope_name;primaryKey;size:190;not null"`
	ChannelCID string    `gorm:"column:channel_cid;primaryKey;size:190;not null"`
	AttachedAt time.Time `gorm:"column:attached_at"`
}

// TableName provides the explicit table binding for GORM.
func (ScopeChannel) TableName() string {
	return "scope_channels"
}
