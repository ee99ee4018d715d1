package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/pkg/connection"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a Bluetooth Classic device",
		Long: `Open a Serial Port Profile link to one device.

Pick the device with exactly one of:
  --index N        scan, then connect to entry N of the scan list
  --label LABEL    scan, then connect to the address inside "Name [AA:BB:CC:DD:EE:FF]"
  --address ADDR   connect straight to ADDR without scanning

The link is held until Ctrl+C, --hold expires or the device drops it.`,
		Example: `  btpick connect --index 0
  btpick connect --label "Speaker [AA:BB:CC:DD:EE:01]"
  btpick connect --address AA:BB:CC:DD:EE:01 --hold 5s`,
		RunE: runConnect,
	}

	addScanFlags(cmd)
	cmd.Flags().Int("index", -1, "Scan list index to connect to")
	cmd.Flags().String("label", "", "Device label to connect to")
	cmd.Flags().String("address", "", "Device address to connect to")
	cmd.Flags().Duration("connect-timeout", 30*time.Second, "Connection attempt timeout")
	cmd.Flags().Duration("hold", 0, "Disconnect after this long (0 holds until Ctrl+C)")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
	cmd.MarkFlagsMutuallyExclusive("index", "label", "address")
	return cmd
}

// connectTarget is the parsed device selection
type connectTarget struct {
	index   int
	label   string
	address device.Address
	byAddr  bool
}

func parseConnectTarget(cmd *cobra.Command) (connectTarget, error) {
	var t connectTarget
	flags := cmd.Flags()

	t.index, _ = flags.GetInt("index")
	t.label, _ = flags.GetString("label")
	addrStr, _ := flags.GetString("address")

	switch {
	case flags.Changed("address"):
		addr, err := device.Parse(addrStr)
		if err != nil {
			return t, err
		}
		t.address = addr
		t.byAddr = true
	case flags.Changed("label"):
		// Reject malformed labels before scanning
		if _, err := device.ExtractFromLabel(t.label); err != nil {
			return t, err
		}
	case flags.Changed("index"):
		if t.index < 0 {
			return t, fmt.Errorf("--index must not be negative")
		}
	default:
		return t, fmt.Errorf("one of --index, --label or --address is required")
	}
	return t, nil
}

func runConnect(cmd *cobra.Command, _ []string) error {
	target, err := parseConnectTarget(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	ctx, cancel := interruptContext(cmd, "connection")
	defer cancel()

	out := cmd.OutOrStdout()

	if !target.byAddr {
		res, err := scanWithProgress(ctx, cmd, a)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(res.Devices) == 0 {
			fmt.Fprintln(out, "No devices found")
		}
	}

	lost := make(chan struct{}, 1)
	a.conn.OnStateChange(func(s connection.State) {
		switch s.Kind {
		case connection.Connecting:
			printStatus(out, busyColor, "Connecting to %s...", describeTarget(a, s.Target))
		case connection.Idle:
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})

	switch {
	case target.byAddr:
		err = a.conn.ConnectAddress(ctx, target.address)
	case target.label != "":
		err = a.conn.SelectAndConnectByLabel(ctx, target.label)
	default:
		err = a.conn.SelectAndConnect(ctx, target.index)
	}

	state := a.conn.State()
	if err != nil {
		if state.Kind == connection.Failed {
			printStatus(out, failColor, "Failed to connect to %s", describeTarget(a, state.Target))
		}
		return err
	}
	printStatus(out, okColor, "Connected to %s", describeTarget(a, state.Target))

	return holdConnection(ctx, cmd, a, lost)
}

// holdConnection keeps the link until the hold expires, the operator
// interrupts or the platform reports a drop.
func holdConnection(ctx context.Context, cmd *cobra.Command, a *app, lost <-chan struct{}) error {
	hold, _ := cmd.Flags().GetDuration("hold")
	var expired <-chan time.Time
	if hold > 0 {
		timer := time.NewTimer(hold)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-lost:
		printStatus(cmd.OutOrStdout(), failColor, "Link dropped")
		return ErrConnectionLost
	case <-expired:
	case <-ctx.Done():
	}

	if err := a.conn.Disconnect(context.Background()); err != nil {
		a.logger.WithError(err).Warn("Disconnect failed")
	}
	printStatus(cmd.OutOrStdout(), okColor, "Disconnected")
	return nil
}

// describeTarget renders the catalog label when the address is in the last scan
func describeTarget(a *app, addr device.Address) string {
	if d, ok := a.scanner.Catalog().Lookup(addr); ok {
		return d.Label()
	}
	return addr.String()
}
