package pager

import "sync"

// Emission is the combined value of the latest pagination request and the
// latest connectivity signal. Request is nil until the first request is
// issued.
type Emission struct {
	Request   *Request
	Connected bool
}

// emissionDispatcher fans a single owned emission stream out to multiple
// registered subscribers so that observing the pager never triggers duplicate
// upstream work.
type emissionDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Emission
	nextID      int64
	bufferSize  int
	closed      bool
}

func newEmissionDispatcher() *emissionDispatcher {
	return &emissionDispatcher{
		subscribers: make(map[int64]chan Emission),
		bufferSize:  16,
	}
}

func (d *emissionDispatcher) subscribe() (<-chan Emission, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		stream := make(chan Emission)
		close(stream)
		return stream, func() {}
	}
	d.nextID++
	id := d.nextID
	stream := make(chan Emission, d.bufferSize)
	d.subscribers[id] = stream
	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if subscriber, ok := d.subscribers[id]; ok {
			delete(d.subscribers, id)
			close(subscriber)
		}
	}
	return stream, cancel
}

func (d *emissionDispatcher) publish(emission Emission) {
	d.mu.RLock()
	streams := make([]chan Emission, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- emission:
		default:
		}
	}
}

func (d *emissionDispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for id, stream := range d.subscribers {
		delete(d.subscribers, id)
		close(stream)
	}
}
