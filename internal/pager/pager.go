package pager

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// State describes where the pager is in its request lifecycle.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingConnection State = "awaiting_connection"
	StateLoading            State = "loading"
	StateLoaded             State = "loaded"
)

var (
	errInvalidFirstPageLimit = errors.New("pager: first page limit must be positive")
	noOpLogger               = zap.NewNop()
)

// Request is one pagination request. ID is the request identity used to
// discard late results.
type Request struct {
	ID     string
	Cursor Cursor
}

// Config describes the pager's dependencies.
type Config struct {
	// FirstPageLimit is the configured first-page size.
	FirstPageLimit int
	IDProvider     IDProvider
	Logger         *zap.Logger
	// QueueSize bounds the internal scheduling queue; a default is applied
	// when zero.
	QueueSize int
}

// Pager is the pagination state machine. All of its state is mutated on a
// single internal scheduling loop; the exported methods only enqueue work, so
// they are safe to call from any goroutine.
type Pager struct {
	firstPage Cursor
	ids       IDProvider
	logger    *zap.Logger

	// Owned by the scheduling loop.
	cursor        Cursor
	itemCount     int
	state         State
	connected     bool
	current       *Request
	resultHandled bool
	resetPending  bool
	lastEmission  *Emission

	dispatcher *emissionDispatcher
	queue      chan func()
	stop       chan struct{}
	stopOnce   sync.Once
}

// New constructs a pager with its cursor set to the first-page size.
func New(cfg Config) (*Pager, error) {
	if cfg.FirstPageLimit <= 0 {
		return nil, errInvalidFirstPageLimit
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	firstPage := NewCursor(Limit(cfg.FirstPageLimit))
	return &Pager{
		firstPage:  firstPage,
		ids:        ids,
		logger:     logger,
		cursor:     firstPage,
		state:      StateIdle,
		dispatcher: newEmissionDispatcher(),
		queue:      make(chan func(), queueSize),
		stop:       make(chan struct{}),
	}, nil
}

// Start launches the scheduling loop.
func (p *Pager) Start() {
	go p.run()
}

// Stop terminates the scheduling loop and closes all subscriber streams.
func (p *Pager) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Subscribe registers a listener on the shared emission stream. The returned
// cancel function unregisters it.
func (p *Pager) Subscribe() (<-chan Emission, func()) {
	return p.dispatcher.subscribe()
}

// Reload resets the accumulated item count and the cursor to the first-page
// size, then requests the first page unconditionally.
func (p *Pager) Reload() {
	p.enqueue(func() {
		p.itemCount = 0
		p.cursor = p.firstPage
		p.resetPending = false
		p.issueRequest(p.firstPage)
	})
}

// LoadNext requests the next page. It is a no-op before any successful first
// load has advanced the cursor; after a disconnect reset it behaves like
// Reload and fetches the first page again.
func (p *Pager) LoadNext() {
	p.enqueue(func() {
		if p.cursor.Equal(p.firstPage) && !p.resetPending {
			return
		}
		p.resetPending = false
		p.issueRequest(p.cursor)
	})
}

// SetConnected records a connectivity transition. A transition to
// disconnected while items are cached clears them and resets the cursor; it
// issues no request of its own.
func (p *Pager) SetConnected(connected bool) {
	p.enqueue(func() {
		if p.connected == connected {
			return
		}
		p.connected = connected
		if !connected {
			// A request in flight when the connection drops is dead: its
			// payload must not advance the cursor past the reset below.
			if p.current != nil {
				p.resultHandled = true
			}
			if p.itemCount > 0 {
				p.itemCount = 0
				p.cursor = p.firstPage
				p.resetPending = true
			}
			p.state = StateAwaitingConnection
		} else if p.state == StateAwaitingConnection {
			if p.current != nil && !p.resultHandled {
				p.state = StateLoading
			} else {
				p.state = StateIdle
			}
		}
		p.emit()
	})
}

// HandleResult reports the outcome of a page fetch. Results whose request
// identity no longer matches the current request are ignored so that late
// responses cannot regress the cursor.
func (p *Pager) HandleResult(requestID string, itemCount int, resultErr error) {
	p.enqueue(func() {
		if p.current == nil || p.current.ID != requestID || p.resultHandled {
			p.logger.Debug("stale page result ignored", zap.String("request_id", requestID))
			return
		}
		p.resultHandled = true
		if resultErr != nil {
			p.logger.Warn("page load failed",
				zap.String("request_id", requestID),
				zap.Error(resultErr))
			p.state = StateLoaded
			return
		}
		p.itemCount += itemCount
		if p.itemCount > 0 {
			p.cursor = p.firstPage.With(Offset(p.itemCount))
		}
		p.state = StateLoaded
	})
}

// State returns the current lifecycle state.
func (p *Pager) State() State {
	reply := make(chan State, 1)
	p.enqueue(func() { reply <- p.state })
	select {
	case state := <-reply:
		return state
	case <-p.stop:
		return StateIdle
	}
}

// ItemsCached returns the accumulated item count.
func (p *Pager) ItemsCached() int {
	reply := make(chan int, 1)
	p.enqueue(func() { reply <- p.itemCount })
	select {
	case count := <-reply:
		return count
	case <-p.stop:
		return 0
	}
}

// CurrentCursor returns the cursor the next LoadNext would use.
func (p *Pager) CurrentCursor() Cursor {
	reply := make(chan Cursor, 1)
	p.enqueue(func() { reply <- p.cursor })
	select {
	case cursor := <-reply:
		return cursor
	case <-p.stop:
		return Cursor{}
	}
}

func (p *Pager) run() {
	for {
		select {
		case fn := <-p.queue:
			fn()
		case <-p.stop:
			p.dispatcher.close()
			return
		}
	}
}

func (p *Pager) enqueue(fn func()) {
	select {
	case p.queue <- fn:
	case <-p.stop:
	}
}

// issueRequest forms and emits a Loading request. A request for anything but
// the first page made against an empty cache is suppressed and replaced, on a
// later scheduling turn, by a first-page request; the replacement passes this
// guard, so the correction terminates after exactly one redirect.
func (p *Pager) issueRequest(cursor Cursor) {
	if p.itemCount == 0 && !cursor.Equal(p.firstPage) {
		p.logger.Debug("pagination request redirected to first page")
		p.enqueue(func() {
			p.issueRequest(p.firstPage)
		})
		return
	}
	id, err := p.ids.NewID()
	if err != nil {
		p.logger.Error("request id generation failed", zap.Error(err))
		return
	}
	p.current = &Request{ID: id, Cursor: cursor}
	p.resultHandled = false
	if p.connected {
		p.state = StateLoading
	} else {
		p.state = StateAwaitingConnection
	}
	p.emit()
}

// emit publishes the combined (request, connectivity) value when it changed.
func (p *Pager) emit() {
	emission := Emission{Request: p.current, Connected: p.connected}
	if p.lastEmission != nil && emissionEqual(*p.lastEmission, emission) {
		return
	}
	p.lastEmission = &emission
	p.dispatcher.publish(emission)
}

func emissionEqual(a, b Emission) bool {
	if a.Connected != b.Connected {
		return false
	}
	if a.Request == nil || b.Request == nil {
		return a.Request == b.Request
	}
	return a.Request.ID == b.Request.ID && a.Request.Cursor.Equal(b.Request.Cursor)
}
