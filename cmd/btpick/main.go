package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree; every call returns fresh flag state
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "btpick",
		Short: "Bluetooth Classic device picker",
		Long: `Bluetooth Classic (BR/EDR) command-line tool that provides:

- Scan for nearby discoverable devices and list them as "Name [AA:BB:CC:DD:EE:FF]"
- Connect to a device over the Serial Port Profile by list index, label or address
- Interactive picker: scan, select and connect from the terminal

Run with --radio sim --sim-file devices.yaml to replay a scripted radio.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
	}

	// Silence Cobra's "Error:" prefix - main() prints clean errors
	root.SilenceErrors = true

	root.AddCommand(newScanCmd())
	root.AddCommand(newConnectCmd())
	root.AddCommand(newUICmd())

	// Global flags
	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("radio", "", "Radio backend (bluez, sim)")
	root.PersistentFlags().String("sim-file", "", "Device fixture for the sim radio")
	root.PersistentFlags().String("adapter", "", "BlueZ adapter name (e.g. hci0)")

	// Add -v as a short flag for --version
	root.Flags().BoolP("version", "v", false, "Show version information")

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
