package hub

import (
	"sync"
	"testing"
	"time"

	"puptrain/internal/hub/protocol"
)

// recordingObserver captures frame records for assertions.
type recordingObserver struct {
	mu   sync.Mutex
	recs []FrameRecord
}

func (o *recordingObserver) Frame(rec FrameRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recs = append(o.recs, rec)
}

func (o *recordingObserver) records() []FrameRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]FrameRecord, len(o.recs))
	copy(out, o.recs)
	return out
}

func TestDispatcherRoutesAttachToRegistry(t *testing.T) {
	reg := NewRegistry(DefaultRequiredKinds())
	obs := &recordingObserver{}
	d := NewDispatcher(reg, obs, nil)
	d.SetEpoch(time.Now())

	ev := d.HandleRaw([]byte{0x0F, 0x00, 0x04, 0x00, 0x01, 0x02})
	if _, ok := ev.(protocol.PortAttached); !ok {
		t.Fatalf("HandleRaw returned %#v, want PortAttached", ev)
	}
	if reg.Count() != 1 {
		t.Errorf("registry Count() = %d, want 1", reg.Count())
	}

	recs := obs.records()
	if len(recs) != 1 {
		t.Fatalf("observer got %d records, want 1", len(recs))
	}
	if recs[0].Direction != RX {
		t.Errorf("record direction = %v, want RX", recs[0].Direction)
	}
	if recs[0].Description == "" {
		t.Error("record description should not be empty")
	}
}

func TestDispatcherSurvivesGarbage(t *testing.T) {
	reg := NewRegistry(DefaultRequiredKinds())
	obs := &recordingObserver{}
	d := NewDispatcher(reg, obs, nil)

	garbage := [][]byte{nil, {}, {0xDE}, {0xDE, 0xAD}, {0xDE, 0xAD, 0xBE, 0xEF}}
	for _, raw := range garbage {
		ev := d.HandleRaw(raw)
		if _, ok := ev.(protocol.Unrecognized); !ok {
			t.Errorf("HandleRaw(% X) = %#v, want Unrecognized", raw, ev)
		}
	}
	if got := len(obs.records()); got != len(garbage) {
		t.Errorf("observer got %d records, want %d", got, len(garbage))
	}
	if reg.Count() != 0 {
		t.Errorf("registry Count() = %d, want 0", reg.Count())
	}
}

func TestDispatcherCopiesNotificationBuffer(t *testing.T) {
	reg := NewRegistry(nil)
	obs := &recordingObserver{}
	d := NewDispatcher(reg, obs, nil)

	buf := []byte{0x05, 0x00, 0x82, 0x00, 0x01}
	d.HandleRaw(buf)
	buf[4] = 0xFF // the stack reuses notification buffers

	recs := obs.records()
	if recs[0].Bytes[4] != 0x01 {
		t.Error("dispatcher must copy the notification buffer before use")
	}
}
