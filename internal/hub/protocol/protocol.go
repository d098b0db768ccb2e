// Package protocol implements the LEGO Wireless Protocol 3.0 frames spoken
// by Powered Up train hubs ("HUB NO.4"): port output commands, the
// hub-properties keep-alive request, and decoding of inbound notifications.
// All functions are pure; the package holds no state.
package protocol

import "fmt"

// LEGO Wireless Protocol UUIDs. A single characteristic carries both
// outbound writes and inbound notifications.
const (
	ServiceUUID        = "00001623-1212-efde-1623-785feabcd123"
	CharacteristicUUID = "00001624-1212-efde-1623-785feabcd123"
)

// Well-known port ids on a City/Train hub.
const (
	PortMotorA  byte = 0x00
	PortLED     byte = 0x32
	PortCurrent byte = 0x3B
	PortVoltage byte = 0x3C
)

// Message types, found at offset 2 of every frame.
const (
	msgHubProperties  = 0x01
	msgPortInfo       = 0x04
	msgGenericError   = 0x05
	msgOutputFeedback = 0x82
)

// Port-info event codes at offset 4.
const (
	portEventDetached = 0x00
	portEventAttached = 0x01
)

// Kind identifies the device type attached to a port, as reported in the
// io-type byte of a port-info notification.
type Kind byte

const (
	KindUnknown Kind = 0x00
	KindMotor   Kind = 0x02
	KindVoltage Kind = 0x14
	KindCurrent Kind = 0x15
	KindLED     Kind = 0x17
)

func (k Kind) String() string {
	switch k {
	case KindMotor:
		return "train motor"
	case KindLED:
		return "rgb led"
	case KindVoltage:
		return "voltage sensor"
	case KindCurrent:
		return "current sensor"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(k))
	}
}

// KindFromName resolves a configuration name ("motor", "led", "voltage",
// "current") to a Kind.
func KindFromName(name string) (Kind, bool) {
	switch name {
	case "motor":
		return KindMotor, true
	case "led":
		return KindLED, true
	case "voltage":
		return KindVoltage, true
	case "current":
		return KindCurrent, true
	default:
		return KindUnknown, false
	}
}

// Feedback is the status code carried by a port output command feedback
// notification (message type 0x82).
type Feedback byte

const (
	FeedbackBufferEmpty Feedback = 0x01
	FeedbackBufferFull  Feedback = 0x02
	FeedbackCompleted   Feedback = 0x04
	FeedbackDiscarded   Feedback = 0x08
	FeedbackIdle        Feedback = 0x10
)

func (f Feedback) String() string {
	switch f {
	case FeedbackBufferEmpty:
		return "buffer empty"
	case FeedbackBufferFull:
		return "buffer full"
	case FeedbackCompleted:
		return "command completed"
	case FeedbackDiscarded:
		return "command discarded"
	case FeedbackIdle:
		return "idle"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(f))
	}
}

// ClampPower bounds a motor power value to the hub's accepted range.
func ClampPower(v int) int {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}

// completionMode selects the startup/completion byte of a port output
// command. Requesting feedback (0x11) makes the hub confirm every command
// with an 0x82 notification; some firmware drops the link when that is
// combined with high-rate commands, so the flag is a configuration choice.
func completionMode(requestFeedback bool) byte {
	if requestFeedback {
		return 0x11
	}
	return 0x01
}

// EncodeMotor builds a port output command (WriteDirectModeData, mode 0)
// driving the motor on the given port at the given power. Power is clamped
// to [-100, 100] and sent as a two's-complement signed byte.
func EncodeMotor(port byte, power int, requestFeedback bool) []byte {
	p := ClampPower(power)
	return []byte{0x08, 0x00, 0x81, port, completionMode(requestFeedback), 0x51, 0x00, byte(p)}
}

// EncodeLED builds a port output command setting the hub LED to the given
// palette color code.
func EncodeLED(code byte, requestFeedback bool) []byte {
	return []byte{0x08, 0x00, 0x81, PortLED, completionMode(requestFeedback), 0x51, 0x00, code}
}

// EncodeKeepAlive builds a hub-properties request for the advertising
// name. The hub answers with a harmless property update; the point is the
// traffic itself, which stops the hub from dropping an idle link.
func EncodeKeepAlive() []byte {
	return []byte{0x05, 0x00, msgHubProperties, 0x01, 0x05}
}
