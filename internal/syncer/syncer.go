// Package syncer wires the pager's request stream to the transport and the
// merge engine: every emitted pagination request becomes one page fetch whose
// channels are upserted into the local cache under the configured scope.
package syncer

import (
	"context"
	"errors"

	"github.com/lumeno/chatsync/internal/merge"
	"github.com/lumeno/chatsync/internal/pager"
	"github.com/lumeno/chatsync/internal/query"
	"github.com/lumeno/chatsync/internal/transport"
	"go.uber.org/zap"
)

var (
	errMissingPager   = errors.New("syncer: pager is required")
	errMissingFetcher = errors.New("syncer: page fetcher is required")
	errMissingMerger  = errors.New("syncer: merge service is required")
)

// Config describes the syncer's dependencies.
type Config struct {
	Pager   *pager.Pager
	Fetcher transport.PageFetcher
	Merger  *merge.Service
	Scope   query.Scope
	Logger  *zap.Logger
}

// Syncer consumes the pager's shared emission stream. It subscribes at
// construction time so that no request emitted between construction and Run
// is lost.
type Syncer struct {
	pager   *pager.Pager
	fetcher transport.PageFetcher
	merger  *merge.Service
	scope   query.Scope
	logger  *zap.Logger

	emissions   <-chan pager.Emission
	unsubscribe func()

	lastHandledRequestID string
}

// New constructs a syncer.
func New(cfg Config) (*Syncer, error) {
	if cfg.Pager == nil {
		return nil, errMissingPager
	}
	if cfg.Fetcher == nil {
		return nil, errMissingFetcher
	}
	if cfg.Merger == nil {
		return nil, errMissingMerger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	emissions, unsubscribe := cfg.Pager.Subscribe()
	return &Syncer{
		pager:       cfg.Pager,
		fetcher:     cfg.Fetcher,
		merger:      cfg.Merger,
		scope:       cfg.Scope,
		logger:      logger,
		emissions:   emissions,
		unsubscribe: unsubscribe,
	}, nil
}

// Run processes emissions until the context is cancelled or the pager stops.
// A request is fetched only while connected, and each request identity is
// fetched at most once even when connectivity transitions re-emit it.
func (s *Syncer) Run(ctx context.Context) error {
	defer s.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case emission, ok := <-s.emissions:
			if !ok {
				return nil
			}
			if !emission.Connected || emission.Request == nil {
				continue
			}
			if emission.Request.ID == s.lastHandledRequestID {
				continue
			}
			s.lastHandledRequestID = emission.Request.ID
			s.handleRequest(ctx, *emission.Request)
		}
	}
}

func (s *Syncer) handleRequest(ctx context.Context, request pager.Request) {
	page, err := s.fetcher.FetchPage(ctx, s.scope, request.Cursor)
	if err != nil {
		s.logger.Warn("channel page fetch failed",
			zap.String("request_id", request.ID),
			zap.String("scope", s.scope.Name()),
			zap.Error(err))
		s.pager.HandleResult(request.ID, 0, err)
		return
	}

	for _, channel := range page.Channels {
		if _, err := s.merger.SaveChannel(ctx, channel, &s.scope); err != nil {
			s.logger.Warn("channel save failed",
				zap.String("cid", channel.CID),
				zap.Error(err))
		}
	}
	s.pager.HandleResult(request.ID, len(page.Channels), nil)
}
