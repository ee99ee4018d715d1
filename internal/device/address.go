package device

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the size of a raw Bluetooth hardware address
const AddressLen = 6

// addressTextLen is the length of "AA:BB:CC:DD:EE:FF"
const addressTextLen = 3*AddressLen - 1

// Address is a raw Bluetooth hardware address, most significant byte first.
type Address [AddressLen]byte

// String returns the canonical colon-hex form
func (a Address) String() string {
	return Format(a)
}

// IsZero reports whether all bytes are zero
func (a Address) IsZero() bool {
	return a == Address{}
}

// Format renders raw as uppercase colon-separated hex, always 17 characters.
func Format(raw Address) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		raw[0], raw[1], raw[2], raw[3], raw[4], raw[5])
}

// Parse converts a colon-hex address back to raw bytes.
// It accepts either case and requires exactly six two-digit groups.
func Parse(text string) (Address, error) {
	var addr Address

	if len(text) != addressTextLen {
		return addr, NewError(MalformedAddress, "%q: want %d characters, got %d", text, addressTextLen, len(text))
	}

	groups := strings.Split(text, ":")
	if len(groups) != AddressLen {
		return addr, NewError(MalformedAddress, "%q: want %d colon-separated groups", text, AddressLen)
	}

	for i, g := range groups {
		if len(g) != 2 {
			return addr, NewError(MalformedAddress, "%q: group %d is not two hex digits", text, i)
		}
		b, err := hex.DecodeString(g)
		if err != nil {
			return addr, NewError(MalformedAddress, "%q: group %d is not hex", text, i)
		}
		addr[i] = b[0]
	}
	return addr, nil
}

// MustParse is like Parse but panics on malformed input. Intended for constants and tests.
func MustParse(text string) Address {
	addr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return addr
}

// Label composes the display label "<name> [<address>]".
func Label(name string, addr Address) string {
	return name + " [" + Format(addr) + "]"
}

// ExtractFromLabel recovers the raw address from a display label.
// The address is taken from between the last '[' and the first ']' after it;
// colon separators are dropped and exactly 12 hex digits must remain.
func ExtractFromLabel(label string) (Address, error) {
	var addr Address

	start := strings.LastIndex(label, "[")
	if start < 0 {
		return addr, NewError(MalformedLabel, "%q: no '[' found", label)
	}
	end := strings.Index(label[start+1:], "]")
	if end < 0 {
		return addr, NewError(MalformedLabel, "%q: no ']' after '['", label)
	}

	digits := strings.ReplaceAll(label[start+1:start+1+end], ":", "")
	if len(digits) != 2*AddressLen {
		return addr, NewError(MalformedLabel, "%q: want %d hex digits, got %d", label, 2*AddressLen, len(digits))
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return addr, NewError(MalformedLabel, "%q: address is not hex", label)
	}
	copy(addr[:], raw)
	return addr, nil
}
