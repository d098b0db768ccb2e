package protocol

import "fmt"

// Event is a decoded inbound notification. Concrete types are
// PortAttached, PortDetached, GenericError, OutputFeedback and
// Unrecognized. Every event carries a human-readable String form used by
// the traffic observer.
type Event interface {
	fmt.Stringer
}

// PortAttached reports a device appearing on a port.
type PortAttached struct {
	Port byte
	Kind Kind
}

func (e PortAttached) String() string {
	return fmt.Sprintf("port 0x%02X attached: %s", e.Port, e.Kind)
}

// PortDetached reports a device disappearing from a port.
type PortDetached struct {
	Port byte
}

func (e PortDetached) String() string {
	return fmt.Sprintf("port 0x%02X detached", e.Port)
}

// GenericError is the hub's error notification (message type 0x05).
type GenericError struct {
	Raw []byte
}

func (e GenericError) String() string {
	return fmt.Sprintf("hub error: % X", e.Raw)
}

// OutputFeedback acknowledges a port output command (message type 0x82).
type OutputFeedback struct {
	Port     byte
	Feedback Feedback
}

func (e OutputFeedback) String() string {
	return fmt.Sprintf("port 0x%02X feedback: %s", e.Port, e.Feedback)
}

// Unrecognized wraps any frame that is too short for its message type or
// carries a message type this package does not decode.
type Unrecognized struct {
	Raw []byte
}

func (e Unrecognized) String() string {
	return fmt.Sprintf("unrecognized frame: % X", e.Raw)
}

// Decode translates a raw notification frame into an Event. It is total:
// malformed or unknown input decodes to Unrecognized, never an error. A
// corrupt frame must not be able to break the notification stream.
func Decode(raw []byte) Event {
	if len(raw) < 3 {
		return Unrecognized{Raw: raw}
	}
	switch raw[2] {
	case msgPortInfo:
		return decodePortInfo(raw)
	case msgGenericError:
		return GenericError{Raw: raw}
	case msgOutputFeedback:
		if len(raw) < 5 {
			return Unrecognized{Raw: raw}
		}
		return OutputFeedback{Port: raw[3], Feedback: Feedback(raw[4])}
	default:
		return Unrecognized{Raw: raw}
	}
}

func decodePortInfo(raw []byte) Event {
	if len(raw) < 5 {
		return Unrecognized{Raw: raw}
	}
	port := raw[3]
	switch raw[4] {
	case portEventAttached:
		if len(raw) < 6 {
			return Unrecognized{Raw: raw}
		}
		return PortAttached{Port: port, Kind: Kind(raw[5])}
	case portEventDetached:
		return PortDetached{Port: port}
	default:
		return Unrecognized{Raw: raw}
	}
}
