// Package hub implements the controller for a LEGO Powered Up train hub:
// connection lifecycle, passive port discovery from notifications, the
// keep-alive heartbeat, and the public command API.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"puptrain/internal/ble"
	"puptrain/internal/hub/protocol"
)

var (
	// ErrConnectFailed reports a transport-level failure while
	// establishing the link. Fatal to the Connect call, not the process.
	ErrConnectFailed = errors.New("hub: connect failed")
	// ErrDiscoveryTimeout reports that the required ports did not attach
	// within the discovery bound. The controller has already disconnected.
	ErrDiscoveryTimeout = errors.New("hub: port discovery timed out")
	// ErrNotIdle reports a Connect call while a connection already exists.
	ErrNotIdle = errors.New("hub: not idle")
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateDiscovering
	StateReady
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateDiscovering:
		return "discovering"
	case StateReady:
		return "ready"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Hub.
type Options struct {
	NameFilter       string        // advertised-name substring used when scanning
	Address          string        // explicit address, skips scanning when set
	ScanTimeout      time.Duration
	ConnectTimeout   time.Duration
	DiscoveryTimeout time.Duration

	HeartbeatEnabled  bool
	HeartbeatInterval time.Duration

	// RequestFeedback selects completion mode 0x11 (ask the hub to
	// acknowledge every command) over 0x01. Some firmware drops the link
	// when feedback is requested at heartbeat rate, so this is exposed
	// rather than hardcoded.
	RequestFeedback bool

	MotorPort  byte
	Required   []protocol.Kind
	InitialLED string // LED color set right after readiness, "" disables

	Logger   *slog.Logger
	Observer Observer
}

// DefaultOptions mirrors the behavior of the stock train hub.
func DefaultOptions() Options {
	return Options{
		NameFilter:        "HUB NO.4",
		ScanTimeout:       6 * time.Second,
		ConnectTimeout:    20 * time.Second,
		DiscoveryTimeout:  5 * time.Second,
		HeartbeatEnabled:  true,
		HeartbeatInterval: 150 * time.Millisecond,
		RequestFeedback:   true,
		MotorPort:         protocol.PortMotorA,
		Required:          DefaultRequiredKinds(),
		InitialLED:        "green",
	}
}

// Hub is the orchestrating facade over one BLE train hub. It owns the
// connection, wires notifications into the port registry, runs the
// keep-alive heartbeat, and gates motion commands on port discovery.
//
// A Hub drives a single logical connection; Disconnect always returns it
// to a state where Connect may be called again.
type Hub struct {
	adapter  ble.Adapter
	opts     Options
	log      *slog.Logger
	observer Observer

	registry   *Registry
	dispatcher *Dispatcher

	// writeMu serializes every frame put on the wire. The transport
	// allows one in-flight write at a time, and both the public API and
	// the heartbeat produce writes.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	conn      ble.Connection
	char      ble.Characteristic
	hb        *heartbeat
	connStart time.Time
	lastColor string
}

// New creates a Hub using the given transport adapter.
func New(adapter ble.Adapter, opts Options) *Hub {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	registry := NewRegistry(opts.Required)
	return &Hub{
		adapter:    adapter,
		opts:       opts,
		log:        log,
		observer:   observer,
		registry:   registry,
		dispatcher: NewDispatcher(registry, observer, log),
	}
}

// State returns the controller's current lifecycle state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ports returns a snapshot of the ports attached on the current
// connection.
func (h *Hub) Ports() map[byte]protocol.Kind {
	return h.registry.Attached()
}

// LastColor returns the most recently commanded LED color name.
func (h *Hub) LastColor() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastColor
}

// HeartbeatStopped returns a channel closed when the heartbeat loop has
// exited. After a successful Connect with the heartbeat enabled, an
// unexpected close means a heartbeat write failed and the link is
// presumed lost; treating that as a disconnect trigger is up to the
// caller. Returns nil (blocks forever) when no heartbeat is running.
func (h *Hub) HeartbeatStopped() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hb == nil {
		return nil
	}
	return h.hb.Stopped()
}

// Connect establishes the BLE link, subscribes notifications, and blocks
// until the required ports have attached or the discovery timeout
// elapses. On timeout the hub is fully disconnected before returning
// ErrDiscoveryTimeout; a half-initialized connection is never left up.
func (h *Hub) Connect(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateIdle {
		h.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotIdle, h.state)
	}
	h.state = StateConnecting
	h.mu.Unlock()

	conn, char, err := h.establish(ctx)
	if err != nil {
		h.setState(StateIdle)
		return err
	}

	h.mu.Lock()
	h.conn = conn
	h.char = char
	h.connStart = time.Now()
	h.state = StateDiscovering
	h.mu.Unlock()
	h.dispatcher.SetEpoch(h.connStart)

	if err := h.awaitDiscovery(ctx); err != nil {
		h.teardown()
		return err
	}
	h.setState(StateReady)
	h.log.Info("hub ready", "ports", h.registry.Count())

	if h.opts.InitialLED != "" {
		h.SetLED(h.opts.InitialLED)
	}

	if h.opts.HeartbeatEnabled {
		hb := newHeartbeat(h.opts.HeartbeatInterval, h.opts.MotorPort, h.opts.RequestFeedback,
			func(frame []byte, desc string) error {
				return h.writeFrame(char, frame, desc)
			}, h.log)
		h.mu.Lock()
		h.hb = hb
		h.mu.Unlock()
		hb.Start()
		h.log.Info("heartbeat started", "interval", h.opts.HeartbeatInterval)
	}

	return nil
}

// establish resolves the target address, opens the transport, and
// subscribes notifications. The registry is reset before subscribing so
// no stale ports survive a reconnect.
func (h *Hub) establish(ctx context.Context) (ble.Connection, ble.Characteristic, error) {
	if err := h.adapter.Enable(); err != nil {
		return nil, nil, fmt.Errorf("%w: enable adapter: %v", ErrConnectFailed, err)
	}

	address := h.opts.Address
	if address == "" {
		scanCtx, cancel := context.WithTimeout(ctx, h.opts.ScanTimeout)
		device, err := h.adapter.Scan(scanCtx, h.opts.NameFilter)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		h.log.Info("found hub", "name", device.Name, "address", device.Address, "rssi", device.RSSI)
		address = device.Address
	}

	connectCtx, cancel := context.WithTimeout(ctx, h.opts.ConnectTimeout)
	conn, err := h.adapter.Connect(connectCtx, address)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	h.log.Info("connected", "address", address)

	conn.OnDisconnect(func() {
		h.log.Warn("link lost", "state", h.State().String())
	})

	char, err := conn.DiscoverCharacteristic(protocol.ServiceUUID, protocol.CharacteristicUUID)
	if err != nil {
		h.closeConn(conn, nil)
		return nil, nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	h.registry.Reset()
	if err := char.Subscribe(func(data []byte) {
		h.dispatcher.HandleRaw(data)
	}); err != nil {
		h.closeConn(conn, nil)
		return nil, nil, fmt.Errorf("%w: subscribe: %v", ErrConnectFailed, err)
	}

	return conn, char, nil
}

// awaitDiscovery blocks until the registry signals readiness or the
// discovery bound elapses.
func (h *Hub) awaitDiscovery(ctx context.Context) error {
	h.log.Info("waiting for port discovery", "required", len(h.opts.Required), "timeout", h.opts.DiscoveryTimeout)

	timer := time.NewTimer(h.opts.DiscoveryTimeout)
	defer timer.Stop()

	select {
	case <-h.registry.ReadySignal():
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %d ports attached", ErrDiscoveryTimeout, h.registry.Count())
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrConnectFailed, ctx.Err())
	}
}

// SetSpeed sets the desired motor power, clamped to [-100, 100]. The
// heartbeat re-asserts the value each tick; one immediate write is also
// issued so the motor reacts without waiting for the next tick. Before
// readiness this is a no-op: the command is neither queued nor deferred.
func (h *Hub) SetSpeed(v int) {
	v = protocol.ClampPower(v)

	h.mu.Lock()
	if h.state != StateReady {
		state := h.state
		h.mu.Unlock()
		h.log.Warn("ignoring speed command", "speed", v, "state", state.String())
		return
	}
	char := h.char
	hb := h.hb
	h.mu.Unlock()

	if hb != nil {
		hb.SetPower(v)
	}
	frame := protocol.EncodeMotor(h.opts.MotorPort, v, h.opts.RequestFeedback)
	if err := h.writeFrame(char, frame, fmt.Sprintf("speed=%d", v)); err != nil {
		// Not fatal: the next heartbeat tick re-sends the same state.
		h.log.Warn("immediate speed write failed", "error", err)
	}
}

// Stop brakes the motor.
func (h *Hub) Stop() {
	h.SetSpeed(0)
}

// SetLED sets the hub LED by palette name, matched case-insensitively.
// Unknown names are ignored with a warning. LED state is fire-and-forget:
// the heartbeat does not re-send it.
func (h *Hub) SetLED(name string) {
	code, ok := protocol.LookupColor(name)
	if !ok {
		h.log.Warn("unknown led color", "color", name)
		return
	}

	h.mu.Lock()
	if h.state != StateReady {
		state := h.state
		h.mu.Unlock()
		h.log.Warn("ignoring led command", "color", name, "state", state.String())
		return
	}
	char := h.char
	h.lastColor = strings.ToLower(name)
	h.mu.Unlock()

	frame := protocol.EncodeLED(code, h.opts.RequestFeedback)
	if err := h.writeFrame(char, frame, "led="+strings.ToLower(name)); err != nil {
		h.log.Warn("led write failed", "error", err)
	}
}

// Disconnect stops the heartbeat, unsubscribes, and closes the transport.
// Teardown is unconditional: every failure along the way is logged and
// swallowed, and the controller always ends up Idle and reusable.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	if h.state == StateIdle {
		h.mu.Unlock()
		return
	}
	h.state = StateDisconnecting
	h.mu.Unlock()
	h.teardown()
	h.log.Info("disconnected")
}

// teardown joins the heartbeat, then releases the transport.
func (h *Hub) teardown() {
	h.mu.Lock()
	hb := h.hb
	conn := h.conn
	char := h.char
	h.hb = nil
	h.conn = nil
	h.char = nil
	h.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	h.closeConn(conn, char)
	h.setState(StateIdle)
}

func (h *Hub) closeConn(conn ble.Connection, char ble.Characteristic) {
	if char != nil {
		if err := char.Unsubscribe(); err != nil {
			h.log.Debug("unsubscribe failed", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			h.log.Warn("transport disconnect failed", "error", err)
		}
	}
}

func (h *Hub) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// writeFrame is the single exclusion point for the wire: the immediate
// writes of the public API and the heartbeat ticks both pass through it,
// so no two writes race on the characteristic.
func (h *Hub) writeFrame(char ble.Characteristic, frame []byte, desc string) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	now := time.Now()
	h.mu.Lock()
	start := h.connStart
	h.mu.Unlock()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = now.Sub(start)
	}
	h.observer.Frame(FrameRecord{
		Direction:   TX,
		Timestamp:   now,
		Elapsed:     elapsed,
		Bytes:       frame,
		Description: desc,
	})

	if err := char.Write(frame); err != nil {
		return fmt.Errorf("hub: write %s: %w", desc, err)
	}
	return nil
}
