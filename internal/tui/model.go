// Package tui is the interactive device picker: scan, pick a row, connect.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/pkg/connection"
)

// Scanner is the discovery side the picker drives
type Scanner interface {
	StartScan(ctx context.Context) (*discovery.Result, error)
	IsScanning() bool
}

// Connector is the connection side the picker drives
type Connector interface {
	SelectAndConnectHandle(ctx context.Context, h device.Handle) error
	Disconnect(ctx context.Context) error
	Acknowledge()
	State() connection.State
}

// ScanEventMsg carries a discovery event into the program
type ScanEventMsg discovery.Event

// StartScanMsg asks the picker to start a scan, as the s key does
type StartScanMsg struct{}

// StateMsg carries a connection state transition into the program
type StateMsg connection.State

type scanDoneMsg struct {
	result *discovery.Result
	err    error
}

type connectDoneMsg struct {
	err error
}

type disconnectDoneMsg struct {
	err error
}

// PickerModel is the bubbletea model of the picker
type PickerModel struct {
	ctx     context.Context
	scanner Scanner
	conn    Connector

	table    table.Model
	devices  []device.DiscoveredDevice
	session  uuid.UUID
	scanning bool
	scanned  bool
	scanErr  error

	state   connection.State
	connErr error
}

// NewPickerModel creates the picker. ctx bounds every scan and connect it starts.
func NewPickerModel(ctx context.Context, scanner Scanner, conn Connector) PickerModel {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Name", Width: 24},
		{Title: "Address", Width: 17},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return PickerModel{
		ctx:     ctx,
		scanner: scanner,
		conn:    conn,
		table:   t,
		state:   conn.State(),
	}
}

// Init starts the first scan right away
func (m PickerModel) Init() tea.Cmd {
	return func() tea.Msg { return StartScanMsg{} }
}

func (m PickerModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.scanner.StartScan(m.ctx)
		return scanDoneMsg{result: res, err: err}
	}
}

func (m PickerModel) connectCmd(h device.Handle) tea.Cmd {
	return func() tea.Msg {
		return connectDoneMsg{err: m.conn.SelectAndConnectHandle(m.ctx, h)}
	}
}

func (m PickerModel) disconnectCmd() tea.Cmd {
	return func() tea.Msg {
		return disconnectDoneMsg{err: m.conn.Disconnect(m.ctx)}
	}
}
