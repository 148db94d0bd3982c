package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lumeno/chatsync/internal/merge"
	"go.uber.org/zap"
)

var (
	errMissingEventURL   = errors.New("transport: event feed url is required")
	errMissingEventSaver = errors.New("transport: event saver is required")
)

// EventSaver applies a decoded event to the local cache.
type EventSaver interface {
	SaveEvent(ctx context.Context, event merge.EventPayload) error
}

// EventReceiverConfig describes the dependencies of the event receiver.
type EventReceiverConfig struct {
	URL    string
	Dialer *websocket.Dialer
	Saver  EventSaver
	Logger *zap.Logger
	// OnConnectionChange observes connected/disconnected transitions; the
	// pager consumes this signal.
	OnConnectionChange func(connected bool)
}

// EventReceiver maintains one websocket connection to the event feed and
// routes every decoded event through the merge engine. Reconnect policy is
// the caller's: Run handles a single connection and returns on failure.
type EventReceiver struct {
	url                string
	dialer             *websocket.Dialer
	saver              EventSaver
	logger             *zap.Logger
	onConnectionChange func(connected bool)
}

// NewEventReceiver constructs an event receiver.
func NewEventReceiver(cfg EventReceiverConfig) (*EventReceiver, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errMissingEventURL
	}
	if cfg.Saver == nil {
		return nil, errMissingEventSaver
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onChange := cfg.OnConnectionChange
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &EventReceiver{
		url:                strings.TrimSpace(cfg.URL),
		dialer:             dialer,
		saver:              cfg.Saver,
		logger:             logger,
		onConnectionChange: onChange,
	}, nil
}

// Run dials the event feed and processes events until the connection drops
// or the context is cancelled. A decode failure skips the event; an apply
// failure is reported and processing continues.
func (r *EventReceiver) Run(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return &Error{Kind: ErrorKindNetwork, Err: err}
	}

	r.onConnectionChange(true)
	defer r.onConnectionChange(false)

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closed:
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &Error{Kind: ErrorKindNetwork, Err: err}
		}

		var event merge.EventPayload
		if err := json.Unmarshal(data, &event); err != nil {
			r.logger.Warn("event decode failed, skipping", zap.Error(err))
			continue
		}
		if err := r.saver.SaveEvent(ctx, event); err != nil {
			r.logger.Warn("event apply failed",
				zap.String("event_type", event.Type),
				zap.String("cid", event.CID),
				zap.Error(err))
		}
	}
}
