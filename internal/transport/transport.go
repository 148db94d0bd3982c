// Package transport is the boundary to the remote chat service: a page
// fetcher for channel-list queries and a websocket receiver for the event
// feed. Retry and backoff policy live with the caller, not here.
package transport

import (
	"context"
	"fmt"

	"github.com/lumeno/chatsync/internal/merge"
	"github.com/lumeno/chatsync/internal/pager"
	"github.com/lumeno/chatsync/internal/query"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindDecode  ErrorKind = "decode"
	ErrorKindServer  ErrorKind = "server"
)

// Error is a typed transport failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s error", e.Kind)
	}
	return fmt.Sprintf("transport %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ChannelListPage is one decoded page of channel-list results.
type ChannelListPage struct {
	Channels []merge.ChannelPayload `json:"channels"`
}

// PageFetcher fetches one page of channel results for a scope and cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, scope query.Scope, cursor pager.Cursor) (ChannelListPage, error)
}
