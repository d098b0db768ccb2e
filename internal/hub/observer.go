package hub

import (
	"fmt"
	"log/slog"
	"time"
)

// Direction marks which way a frame crossed the link.
type Direction int

const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// FrameRecord describes one frame on the wire, for logging or telemetry.
type FrameRecord struct {
	Direction   Direction
	Timestamp   time.Time
	Elapsed     time.Duration // since the current connection was established
	Bytes       []byte
	Description string
}

// Observer receives a record for every frame crossing the link. Frame may
// be called from the notification goroutine and the heartbeat goroutine
// concurrently; implementations must be safe for that.
type Observer interface {
	Frame(rec FrameRecord)
}

// LogObserver writes frame records to a slog.Logger at debug level.
type LogObserver struct {
	log *slog.Logger
}

// NewLogObserver wraps a logger as an Observer. A nil logger uses
// slog.Default().
func NewLogObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{log: log}
}

func (o *LogObserver) Frame(rec FrameRecord) {
	o.log.Debug("frame",
		"dir", rec.Direction.String(),
		"t", fmt.Sprintf("%.3fs", rec.Elapsed.Seconds()),
		"bytes", fmt.Sprintf("% X", rec.Bytes),
		"desc", rec.Description,
	)
}

type nopObserver struct{}

func (nopObserver) Frame(FrameRecord) {}
