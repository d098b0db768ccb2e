package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"puptrain/internal/hub/protocol"
)

// heartbeat re-asserts desired motor state on a fixed cadence. While the
// last commanded power is non-zero it re-sends the motor command; at zero
// it sends the lightweight hub-properties probe instead, so the link
// never falls silent long enough for the hub to drop it.
//
// The loop stops on the first write failure: a failed write means the
// link is gone, and retrying belongs to a reconnect above this layer.
type heartbeat struct {
	interval        time.Duration
	motorPort       byte
	requestFeedback bool
	send            func(frame []byte, desc string) error
	log             *slog.Logger

	mu    sync.Mutex
	power int

	done     chan struct{} // closed by Stop to request exit
	stopped  chan struct{} // closed by the loop on exit
	stopOnce sync.Once
}

func newHeartbeat(interval time.Duration, motorPort byte, requestFeedback bool, send func([]byte, string) error, log *slog.Logger) *heartbeat {
	if log == nil {
		log = slog.Default()
	}
	return &heartbeat{
		interval:        interval,
		motorPort:       motorPort,
		requestFeedback: requestFeedback,
		send:            send,
		log:             log,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
}

// Start launches the tick loop.
func (h *heartbeat) Start() {
	go h.run()
}

func (h *heartbeat) run() {
	defer close(h.stopped)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			var frame []byte
			var desc string
			if p := h.Power(); p != 0 {
				frame = protocol.EncodeMotor(h.motorPort, p, h.requestFeedback)
				desc = fmt.Sprintf("speed=%d", p)
			} else {
				frame = protocol.EncodeKeepAlive()
				desc = "keep-alive"
			}
			if err := h.send(frame, desc); err != nil {
				h.log.Warn("heartbeat write failed, stopping", "error", err)
				return
			}
		}
	}
}

// SetPower updates the desired motor power. Takes effect on the next
// tick; any immediate write for responsiveness is the controller's job.
func (h *heartbeat) SetPower(v int) {
	h.mu.Lock()
	h.power = protocol.ClampPower(v)
	h.mu.Unlock()
}

// Power returns the last commanded motor power.
func (h *heartbeat) Power() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.power
}

// Stop requests the loop to exit and waits for the in-flight tick to
// finish, so no heartbeat write can race with teardown. Idempotent, and
// safe to call after the loop already stopped on its own.
func (h *heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// Stopped is closed when the loop has exited, whether by Stop or by a
// write failure. The controller treats an unexpected close as link loss.
func (h *heartbeat) Stopped() <-chan struct{} {
	return h.stopped
}
