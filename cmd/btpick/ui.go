package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/tui"
	"github.com/srg/btpick/pkg/connection"
)

func newUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Interactive device picker",
		Long: `Scan, pick and connect from a terminal UI.

Keys:
  s        start a new scan
  ↑/↓      move the selection
  enter    connect to the selected device
  d        disconnect
  a        acknowledge a failed connection
  q        quit`,
		RunE: runUI,
	}

	addScanFlags(cmd)
	cmd.Flags().Duration("connect-timeout", 30*time.Second, "Connection attempt timeout")
	cmd.Flags().Bool("auto-ack", false, "Allow a new attempt without acknowledging a failure")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
	return cmd
}

func runUI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(
		tui.NewPickerModel(ctx, a.scanner, a.conn),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)

	a.scanner.OnEvent(func(ev discovery.Event) { p.Send(tui.ScanEventMsg(ev)) })
	a.conn.OnStateChange(func(s connection.State) { p.Send(tui.StateMsg(s)) })

	_, err = p.Run()
	if err == nil && a.conn.State().Kind == connection.Connected {
		// Leaving the picker closes the link
		_ = a.conn.Disconnect(context.Background())
	}
	return err
}
