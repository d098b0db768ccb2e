package protocol

import "strings"

// ledColors maps palette names to the one-byte color codes accepted by
// the hub LED in mode 0.
var ledColors = map[string]byte{
	"off":        0x00,
	"pink":       0x01,
	"purple":     0x02,
	"blue":       0x03,
	"light_blue": 0x04,
	"cyan":       0x05,
	"green":      0x06,
	"yellow":     0x07,
	"orange":     0x08,
	"white":      0x09,
	"red":        0x0A,
}

// LookupColor resolves a palette name to its LED color code. Names are
// matched case-insensitively.
func LookupColor(name string) (byte, bool) {
	code, ok := ledColors[strings.ToLower(name)]
	return code, ok
}

// ColorNames returns the palette names in no particular order.
func ColorNames() []string {
	names := make([]string, 0, len(ledColors))
	for name := range ledColors {
		names = append(names, name)
	}
	return names
}
