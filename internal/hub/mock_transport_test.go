package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"puptrain/internal/ble"
	"puptrain/internal/hub/protocol"
)

// fakeChar simulates the hub's single write/notify characteristic.
type fakeChar struct {
	mu         sync.Mutex
	writes     [][]byte
	callback   func([]byte)
	failWrites bool
}

func (c *fakeChar) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("simulated write failure")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeChar) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *fakeChar) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = nil
	return nil
}

func (c *fakeChar) setFailWrites(v bool) {
	c.mu.Lock()
	c.failWrites = v
	c.mu.Unlock()
}

func (c *fakeChar) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// notify pushes an inbound frame to the subscriber.
func (c *fakeChar) notify(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *fakeChar) snapshot() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeChar) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

type fakeConn struct {
	char         *fakeChar
	mu           sync.Mutex
	disconnectCb func()
	disconnected bool
}

func (c *fakeConn) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if charUUID != protocol.CharacteristicUUID {
		return nil, fmt.Errorf("fake: unknown characteristic %q", charUUID)
	}
	return c.char, nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *fakeConn) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *fakeConn) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// fakeAdapter simulates the platform BLE stack for controller tests.
type fakeAdapter struct {
	device ble.Device

	mu       sync.Mutex
	conn     *fakeConn
	scanErr  error
	connErr  error
	scanned  int
	connects int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		device: ble.Device{Name: "HUB NO.4", Address: "90:84:2B:0D:18:37", RSSI: -60},
	}
}

func (a *fakeAdapter) Enable() error { return nil }

func (a *fakeAdapter) Scan(_ context.Context, _ string) (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanned++
	if a.scanErr != nil {
		return ble.Device{}, a.scanErr
	}
	return a.device, nil
}

func (a *fakeAdapter) Connect(_ context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if a.connErr != nil {
		return nil, a.connErr
	}
	a.conn = &fakeConn{char: &fakeChar{}}
	return a.conn, nil
}

func (a *fakeAdapter) latest() *fakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}
