package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/groutine"
)

var validFormats = []string{"table", "json"}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for Bluetooth Classic devices",
		Long: `Scan for discoverable Bluetooth Classic devices in the vicinity.

Each device is listed once, in the order it answered the inquiry, with its
name (or a placeholder when it reported none), address and label. The INDEX
column is what 'btpick connect --index' expects.`,
		RunE: runScan,
	}

	addScanFlags(cmd)
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
	return cmd
}

// addScanFlags registers the flags shared by every command that scans
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("duration", "d", 10*time.Second, "Scan duration")
	cmd.Flags().String("unknown-name", device.DefaultUnknownName, "Name shown for devices that report none")
}

func runScan(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !isValidFormat(format) {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := interruptContext(cmd, "scan")
	defer cancel()

	res, err := scanWithProgress(ctx, cmd, a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch a.cfg.OutputFormat {
	case "json":
		return displayDevicesJSON(out, res.Devices)
	default:
		return displayDevicesTable(out, res.Devices)
	}
}

// scanWithProgress runs one scan with a countdown on stderr
func scanWithProgress(ctx context.Context, cmd *cobra.Command, a *app) (*discovery.Result, error) {
	progress := NewScanProgress(cmd.ErrOrStderr(), a.cfg.ScanDuration)
	a.scanner.OnEvent(progress.OnEvent)
	progress.Start()
	defer progress.Stop()

	res, err := a.scanner.StartScan(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("scan already in progress")
	}
	return res, nil
}

// interruptContext is cancelled on Ctrl+C or SIGTERM
func interruptContext(cmd *cobra.Command, what string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	groutine.Go(ctx, "signal-watch", func(ctx context.Context) {
		select {
		case <-sigCh:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nCtrl+C pressed, cancelling %s...\n", what)
			cancel()
		case <-ctx.Done():
		}
	})

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

func displayDevicesTable(w io.Writer, devices []device.DiscoveredDevice) error {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tADDRESS\tLABEL")
	for i, d := range devices {
		name := d.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, name, d.Address, d.Label())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d devices found\n", len(devices))
	return nil
}

func displayDevicesJSON(w io.Writer, devices []device.DiscoveredDevice) error {
	if devices == nil {
		devices = []device.DiscoveredDevice{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
