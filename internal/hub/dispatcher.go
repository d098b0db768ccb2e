package hub

import (
	"log/slog"
	"sync"
	"time"

	"puptrain/internal/hub/protocol"
)

// Dispatcher bridges raw notification frames to decoded events: every
// inbound frame is decoded, folded into the port registry, and reported
// to the observer. Decoding is total, so a corrupt frame can never break
// the notification stream.
type Dispatcher struct {
	registry *Registry
	observer Observer
	log      *slog.Logger

	mu    sync.Mutex
	epoch time.Time
}

// NewDispatcher wires a dispatcher to a registry and an observer. A nil
// observer discards frame records.
func NewDispatcher(registry *Registry, observer Observer, log *slog.Logger) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{registry: registry, observer: observer, log: log}
}

// SetEpoch marks the start of the current connection; frame records carry
// elapsed time relative to it.
func (d *Dispatcher) SetEpoch(t time.Time) {
	d.mu.Lock()
	d.epoch = t
	d.mu.Unlock()
}

func (d *Dispatcher) elapsed(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch.IsZero() {
		return 0
	}
	return now.Sub(d.epoch)
}

// HandleRaw consumes one inbound frame. The input buffer is copied before
// decoding: the BLE stack reuses notification buffers across callbacks.
func (d *Dispatcher) HandleRaw(raw []byte) protocol.Event {
	buf := make([]byte, len(raw))
	copy(buf, raw)

	ev := protocol.Decode(buf)
	d.registry.OnEvent(ev)

	if e, ok := ev.(protocol.GenericError); ok {
		d.log.Warn("hub reported error", "bytes", e.String())
	}

	now := time.Now()
	d.observer.Frame(FrameRecord{
		Direction:   RX,
		Timestamp:   now,
		Elapsed:     d.elapsed(now),
		Bytes:       buf,
		Description: ev.String(),
	})
	return ev
}
