package main

import (
	"errors"
	"fmt"

	"github.com/srg/btpick/internal/device"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the platform dropped the link while the command was holding it.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns core errors into operator-facing text
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var derr *device.Error
	if !errors.As(err, &derr) {
		return err.Error()
	}

	switch derr.Kind {
	case device.RadioUnavailable:
		return fmt.Sprintf("Bluetooth is unavailable (%s). Check that an adapter is present and powered on.", derr.Msg)
	case device.ConnectionFailed:
		return fmt.Sprintf("connection failed: %s (device may be powered off or out of range)", derr.Msg)
	case device.InvalidSelection:
		return fmt.Sprintf("invalid selection: %s. Run 'btpick scan' to list devices.", derr.Msg)
	case device.ConnectionBusy:
		return fmt.Sprintf("connection busy: %s", derr.Msg)
	default:
		return err.Error()
	}
}
