package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/pkg/connection"
)

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "s":
			return m.startScan()

		case "enter":
			if m.scanning || len(m.devices) == 0 || m.state.Busy() {
				return m, nil
			}
			m.connErr = nil
			return m, m.connectCmd(device.Handle{Session: m.session, Index: m.table.Cursor()})

		case "d":
			if m.state.Kind != connection.Connected {
				return m, nil
			}
			return m, m.disconnectCmd()

		case "a":
			if m.state.Kind == connection.Failed {
				m.conn.Acknowledge()
				m.state = m.conn.State()
				m.connErr = nil
			}
			return m, nil
		}

	case StartScanMsg:
		return m.startScan()

	case ScanEventMsg:
		m.applyScanEvent(discovery.Event(msg))
		return m, nil

	case scanDoneMsg:
		// nil result with nil error means another scan was already running
		if msg.err == nil && msg.result == nil {
			m.scanning = m.scanner.IsScanning()
			return m, nil
		}
		m.scanning = false
		m.scanned = true
		m.scanErr = msg.err
		if msg.result != nil {
			m.session = msg.result.Session
			m.setDevices(msg.result.Devices)
		} else {
			m.setDevices(nil)
		}
		return m, nil

	case StateMsg:
		m.state = connection.State(msg)
		return m, nil

	case connectDoneMsg:
		m.connErr = msg.err
		m.state = m.conn.State()
		return m, nil

	case disconnectDoneMsg:
		m.connErr = msg.err
		m.state = m.conn.State()
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m PickerModel) startScan() (tea.Model, tea.Cmd) {
	if m.scanning || m.state.Kind == connection.Connecting {
		return m, nil
	}
	m.scanning = true
	m.scanErr = nil
	m.setDevices(nil)
	return m, m.scanCmd()
}

// applyScanEvent keeps the table live while a scan is running
func (m *PickerModel) applyScanEvent(ev discovery.Event) {
	switch ev.Type {
	case discovery.EventScanStarted:
		m.scanning = true
		m.scanErr = nil
		m.session = ev.Session
		m.setDevices(nil)
	case discovery.EventDeviceFound:
		if ev.Session != m.session {
			return
		}
		m.setDevices(append(m.devices, ev.Device))
	}
}

func (m *PickerModel) setDevices(devices []device.DiscoveredDevice) {
	m.devices = devices
	rows := make([]table.Row, len(devices))
	for i, d := range devices {
		rows[i] = table.Row{strconv.Itoa(i), d.Name, d.Address.String()}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(0)
	}
}
