package ble

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// mockCharacteristic records writes and allows subscribing.
type mockCharacteristic struct {
	mu       sync.Mutex
	writes   [][]byte
	callback func([]byte)
}

func (c *mockCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *mockCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = nil
	return nil
}

// SimulateNotification sends a notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// mockConnection simulates a BLE connection with one characteristic.
type mockConnection struct {
	mu           sync.Mutex
	char         *mockCharacteristic
	charUUID     string
	disconnectCb func()
	disconnected bool
}

func newMockConnection(charUUID string) *mockConnection {
	return &mockConnection{
		char:     &mockCharacteristic{},
		charUUID: charUUID,
	}
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	if charUUID != c.charUUID {
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
	return c.char, nil
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *mockConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// mockAdapter simulates the BLE adapter.
type mockAdapter struct {
	mu         sync.Mutex
	device     Device
	charUUID   string
	connection *mockConnection
}

func newMockAdapter(device Device, charUUID string) *mockAdapter {
	return &mockAdapter{device: device, charUUID: charUUID}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, _ string) (Device, error) {
	return a.device, nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	conn := newMockConnection(a.charUUID)
	a.mu.Lock()
	a.connection = conn
	a.mu.Unlock()
	return conn, nil
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ Characteristic = (*mockCharacteristic)(nil)
}

func TestMockCharacteristicRecordsWrites(t *testing.T) {
	char := &mockCharacteristic{}
	buf := []byte{0x05, 0x00, 0x01, 0x01, 0x05}
	if err := char.Write(buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// The mock must copy: callers may reuse the buffer.
	buf[0] = 0xFF
	if char.writes[0][0] != 0x05 {
		t.Error("mock characteristic should copy written data")
	}
}
