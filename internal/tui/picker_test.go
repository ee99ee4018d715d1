package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/pkg/connection"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockScanner struct{ mock.Mock }

func (m *mockScanner) StartScan(ctx context.Context) (*discovery.Result, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*discovery.Result)
	return res, args.Error(1)
}

func (m *mockScanner) IsScanning() bool { return m.Called().Bool(0) }

type mockConnector struct{ mock.Mock }

func (m *mockConnector) SelectAndConnectHandle(ctx context.Context, h device.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockConnector) Disconnect(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockConnector) Acknowledge() { m.Called() }

func (m *mockConnector) State() connection.State { return m.Called().Get(0).(connection.State) }

var (
	speaker = device.DiscoveredDevice{Name: "Speaker", Address: device.MustParse("AA:BB:CC:DD:EE:01")}
	printer = device.DiscoveredDevice{Name: "Printer", Address: device.MustParse("AA:BB:CC:DD:EE:02")}
)

type PickerTestSuite struct {
	suite.Suite
	scanner *mockScanner
	conn    *mockConnector
	model   PickerModel
	session uuid.UUID
}

func (suite *PickerTestSuite) SetupTest() {
	suite.scanner = &mockScanner{}
	suite.conn = &mockConnector{}
	suite.session = uuid.New()

	suite.conn.On("State").Return(connection.State{Kind: connection.Idle}).Once()
	suite.model = NewPickerModel(context.Background(), suite.scanner, suite.conn)
}

func (suite *PickerTestSuite) TearDownTest() {
	suite.scanner.AssertExpectations(suite.T())
	suite.conn.AssertExpectations(suite.T())
}

// send feeds msg to the model and runs the returned command once
func (suite *PickerTestSuite) send(msg tea.Msg) tea.Msg {
	next, cmd := suite.model.Update(msg)
	suite.model = next.(PickerModel)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func (suite *PickerTestSuite) key(k string) tea.Msg {
	if k == "enter" {
		return suite.send(tea.KeyMsg{Type: tea.KeyEnter})
	}
	return suite.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
}

func (suite *PickerTestSuite) scanWith(devices ...device.DiscoveredDevice) {
	suite.scanner.On("StartScan", mock.Anything).
		Return(&discovery.Result{Session: suite.session, Devices: devices, Reported: len(devices)}, nil).Once()

	done := suite.key("s")
	suite.Require().NotNil(done, "scan key MUST start a scan")
	suite.Contains(suite.model.View(), "SCANNING...", "status MUST show scanning while in flight")
	suite.send(done)
}

func (suite *PickerTestSuite) TestInitRequestsScan() {
	msg := suite.model.Init()()
	suite.IsType(StartScanMsg{}, msg)
}

func (suite *PickerTestSuite) TestScanPopulatesTable() {
	// GOAL: Verify a completed scan fills the list and status text
	//
	// TEST SCENARIO: press s → scanner returns two devices → rows rendered → "2 devices found"

	suite.scanWith(speaker, printer)

	suite.False(suite.model.scanning)
	suite.Len(suite.model.table.Rows(), 2)
	view := suite.model.View()
	suite.Contains(view, "2 devices found")
	suite.Contains(view, "Speaker")
	suite.Contains(view, "AA:BB:CC:DD:EE:02")
}

func (suite *PickerTestSuite) TestEmptyScan() {
	suite.scanWith()

	suite.Contains(suite.model.View(), "No devices found")
}

func (suite *PickerTestSuite) TestScanFailureIsShown() {
	suite.scanner.On("StartScan", mock.Anything).
		Return(nil, device.NewError(device.RadioUnavailable, "adapter powered off")).Once()

	suite.send(suite.key("s"))

	suite.Contains(suite.model.View(), "Bluetooth unavailable")
	suite.Empty(suite.model.table.Rows())
}

func (suite *PickerTestSuite) TestScanKeyIgnoredWhileScanning() {
	suite.scanner.On("StartScan", mock.Anything).Return(&discovery.Result{Session: suite.session}, nil).Once()

	first := suite.key("s")
	suite.NotNil(first)
	suite.Nil(suite.key("s"), "second scan request MUST be ignored while scanning")
}

func (suite *PickerTestSuite) TestLiveScanEvents() {
	suite.send(ScanEventMsg(discovery.Event{Type: discovery.EventScanStarted, Session: suite.session}))
	suite.send(ScanEventMsg(discovery.Event{Type: discovery.EventDeviceFound, Session: suite.session, Device: speaker}))
	suite.send(ScanEventMsg(discovery.Event{Type: discovery.EventDeviceFound, Session: uuid.New(), Device: printer}))

	suite.True(suite.model.scanning)
	suite.Len(suite.model.table.Rows(), 1, "events from another session MUST be ignored")
}

func (suite *PickerTestSuite) TestEnterConnectsSelectedHandle() {
	suite.scanWith(speaker, printer)
	suite.model.table.SetCursor(1)

	suite.conn.On("SelectAndConnectHandle", mock.Anything, device.Handle{Session: suite.session, Index: 1}).Return(nil).Once()
	suite.conn.On("State").Return(connection.State{Kind: connection.Connected, Target: printer.Address}).Once()

	suite.send(suite.key("enter"))

	suite.Equal(connection.Connected, suite.model.state.Kind)
	suite.Contains(suite.model.View(), "Connected to Printer [AA:BB:CC:DD:EE:02]")
}

func (suite *PickerTestSuite) TestFailedConnectionAndAcknowledge() {
	suite.scanWith(speaker)

	failed := connection.State{Kind: connection.Failed, Target: speaker.Address, Reason: "refused"}
	suite.conn.On("SelectAndConnectHandle", mock.Anything, mock.Anything).
		Return(device.NewConnectionFailed(errors.New("refused"))).Once()
	suite.conn.On("State").Return(failed).Once()

	suite.send(suite.key("enter"))

	view := suite.model.View()
	suite.Contains(view, "Failed to connect to Speaker [AA:BB:CC:DD:EE:01]: refused")
	suite.Contains(view, "device may be powered off")

	suite.conn.On("Acknowledge").Once()
	suite.conn.On("State").Return(connection.State{Kind: connection.Idle}).Once()

	suite.Nil(suite.key("a"))
	suite.Contains(suite.model.View(), "Not connected")
}

func (suite *PickerTestSuite) TestDisconnect() {
	suite.scanWith(speaker)
	suite.send(StateMsg(connection.State{Kind: connection.Connected, Target: speaker.Address}))

	suite.conn.On("Disconnect", mock.Anything).Return(nil).Once()
	suite.conn.On("State").Return(connection.State{Kind: connection.Idle}).Once()

	suite.send(suite.key("d"))

	suite.Equal(connection.Idle, suite.model.state.Kind)
}

func (suite *PickerTestSuite) TestEnterIgnoredWhileLinkUp() {
	suite.scanWith(speaker, printer)
	suite.send(StateMsg(connection.State{Kind: connection.Connected, Target: speaker.Address}))

	suite.Nil(suite.key("enter"), "enter MUST NOT start an attempt while connected")
	suite.conn.AssertNotCalled(suite.T(), "SelectAndConnectHandle", mock.Anything, mock.Anything)
}

func (suite *PickerTestSuite) TestDisconnectIgnoredWhenIdle() {
	suite.Nil(suite.key("d"))
	suite.conn.AssertNotCalled(suite.T(), "Disconnect", mock.Anything)
}

func (suite *PickerTestSuite) TestLinkDropUpdatesStatus() {
	suite.scanWith(speaker)
	suite.send(StateMsg(connection.State{Kind: connection.Connected, Target: speaker.Address}))
	suite.Contains(suite.model.View(), "Connected to Speaker")

	suite.send(StateMsg(connection.State{Kind: connection.Idle}))
	suite.Contains(suite.model.View(), "Not connected")
}

func (suite *PickerTestSuite) TestQuit() {
	_, cmd := suite.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	suite.Require().NotNil(cmd)
	suite.IsType(tea.QuitMsg{}, cmd())
}

func TestPickerTestSuite(t *testing.T) {
	suite.Run(t, new(PickerTestSuite))
}
