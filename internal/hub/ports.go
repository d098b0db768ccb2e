package hub

import (
	"sync"

	"puptrain/internal/hub/protocol"
)

// DefaultRequiredKinds is the full set of devices a City/Train hub
// reports during startup. A hub is considered ready once every required
// kind has attached.
func DefaultRequiredKinds() []protocol.Kind {
	return []protocol.Kind{
		protocol.KindMotor,
		protocol.KindLED,
		protocol.KindVoltage,
		protocol.KindCurrent,
	}
}

// Registry accumulates port attachment state reported by the hub since
// the current connection began. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	required  []protocol.Kind
	attached  map[byte]protocol.Kind
	readyCh   chan struct{}
	signalled bool
}

// NewRegistry creates a registry that becomes ready when every kind in
// required has reported attached. An empty required set means any hub is
// immediately ready.
func NewRegistry(required []protocol.Kind) *Registry {
	r := &Registry{required: required}
	r.Reset()
	return r
}

// Reset clears all attachment state and re-arms the readiness signal.
// Called once per new connection, before notifications are subscribed, so
// stale ports from a previous link are never carried over.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = make(map[byte]protocol.Kind)
	r.readyCh = make(chan struct{})
	r.signalled = false
	// An empty required set is ready from the start.
	if r.readyLocked() {
		r.signalled = true
		close(r.readyCh)
	}
}

// OnEvent folds a decoded notification into the registry. Attach events
// are idempotent; re-attaching a known port only updates its kind.
// Non-port events are ignored.
func (r *Registry) OnEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.PortAttached:
		r.mu.Lock()
		r.attached[e.Port] = e.Kind
		if !r.signalled && r.readyLocked() {
			r.signalled = true
			close(r.readyCh)
		}
		r.mu.Unlock()
	case protocol.PortDetached:
		r.mu.Lock()
		delete(r.attached, e.Port)
		r.mu.Unlock()
	}
}

// Ready reports whether every required kind currently has an attached
// port. A detach after readiness flips this back to false.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyLocked()
}

func (r *Registry) readyLocked() bool {
	for _, kind := range r.required {
		found := false
		for _, k := range r.attached {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ReadySignal returns a channel closed the first time the registry
// becomes ready after the last Reset.
func (r *Registry) ReadySignal() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyCh
}

// Attached returns a snapshot of the attached ports.
func (r *Registry) Attached() map[byte]protocol.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[byte]protocol.Kind, len(r.attached))
	for port, kind := range r.attached {
		out[port] = kind
	}
	return out
}

// Count returns the number of attached ports.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attached)
}
