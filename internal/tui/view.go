package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/pkg/connection"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m PickerModel) View() string {
	title := titleStyle.Render("btpick - Bluetooth Classic devices")

	list := m.table.View()
	if !m.scanning && m.scanned && len(m.devices) == 0 && m.scanErr == nil {
		list = "No devices found"
	}
	listBox := infoStyle.Render(m.scanStatus() + "\n" + list)

	body := lipgloss.JoinVertical(lipgloss.Left, title, listBox, m.connectionStatus())

	return body + "\n" + helpStyle.Render("s scan • enter connect • d disconnect • a acknowledge • q quit")
}

// scanStatus is the status line above the device list
func (m PickerModel) scanStatus() string {
	switch {
	case m.scanning:
		return busyStyle.Render("SCANNING...")
	case m.scanErr != nil:
		if device.IsKind(m.scanErr, device.RadioUnavailable) {
			return errStyle.Render("Bluetooth unavailable: " + m.scanErr.Error())
		}
		return errStyle.Render("Scan failed: " + m.scanErr.Error())
	case m.scanned:
		return fmt.Sprintf("%d devices found", len(m.devices))
	default:
		return ""
	}
}

func (m PickerModel) connectionStatus() string {
	target := m.targetLabel()

	switch m.state.Kind {
	case connection.Connecting:
		return busyStyle.Render("Connecting to " + target + "...")
	case connection.Connected:
		return okStyle.Render("Connected to " + target)
	case connection.Failed:
		return errStyle.Render(fmt.Sprintf("Failed to connect to %s: %s (device may be powered off). Press a to acknowledge.",
			target, m.state.Reason))
	}

	if m.connErr != nil {
		return errStyle.Render(m.connErr.Error())
	}
	return "Not connected"
}

// targetLabel renders the current target with its catalog name when known
func (m PickerModel) targetLabel() string {
	for _, d := range m.devices {
		if d.Address == m.state.Target {
			return d.Label()
		}
	}
	return m.state.Target.String()
}
