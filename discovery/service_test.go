package discovery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/testutils"
	"github.com/srg/btpick/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type DiscoveryTestSuite struct {
	suite.Suite

	helper *testutils.TestHelper
	radio  *mocks.MockRadio
	svc    *discovery.Service

	eventsMu sync.Mutex
	events   []discovery.Event
}

func (suite *DiscoveryTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.radio = mocks.NewMockRadio(suite.T())
	suite.svc = discovery.NewService(suite.radio, &discovery.ScanOptions{
		Duration:    time.Second,
		UnknownName: "Unknown",
	}, suite.helper.Logger)

	suite.eventsMu.Lock()
	suite.events = nil
	suite.eventsMu.Unlock()
	suite.svc.OnEvent(func(ev discovery.Event) {
		suite.eventsMu.Lock()
		suite.events = append(suite.events, ev)
		suite.eventsMu.Unlock()
	})
}

func (suite *DiscoveryTestSuite) eventTypes() []discovery.EventType {
	suite.eventsMu.Lock()
	defer suite.eventsMu.Unlock()

	types := make([]discovery.EventType, len(suite.events))
	for i, ev := range suite.events {
		types[i] = ev.Type
	}
	return types
}

func (suite *DiscoveryTestSuite) lastEvent() discovery.Event {
	suite.eventsMu.Lock()
	defer suite.eventsMu.Unlock()
	suite.Require().NotEmpty(suite.events)
	return suite.events[len(suite.events)-1]
}

func (suite *DiscoveryTestSuite) TestScanPopulatesCatalogInDiscoveryOrder() {
	// GOAL: Verify a scan fills the catalog in discovery order and signals completion with the count
	//
	// TEST SCENARIO: radio reports three devices → catalog holds three entries in order → ScanComplete(3)

	suite.radio.On("Open", mock.Anything).Return(nil)
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Run(testutils.ReportAll(
			testutils.Advertisement{Name: "Speaker", Address: "AA:BB:CC:DD:EE:01"},
			testutils.Advertisement{Name: "Phone", Address: "AA:BB:CC:DD:EE:02"},
			testutils.Advertisement{Name: "", Address: "AA:BB:CC:DD:EE:03"},
		)).
		Return(3, nil)

	res, err := suite.svc.StartScan(context.Background())

	suite.Require().NoError(err, "scan MUST succeed")
	suite.Require().NotNil(res, "result MUST be returned")
	suite.Equal(3, res.Reported)
	suite.Equal([]string{
		"Speaker [AA:BB:CC:DD:EE:01]",
		"Phone [AA:BB:CC:DD:EE:02]",
		"Unknown [AA:BB:CC:DD:EE:03]",
	}, suite.svc.Catalog().Labels())
	suite.Equal(res.Devices, suite.svc.Catalog().Devices())
	suite.True(suite.svc.Catalog().Frozen(), "catalog MUST be frozen after the scan")
	suite.False(suite.svc.IsScanning())

	suite.Equal([]discovery.EventType{
		discovery.EventScanStarted,
		discovery.EventDeviceFound,
		discovery.EventDeviceFound,
		discovery.EventDeviceFound,
		discovery.EventScanComplete,
	}, suite.eventTypes())
	complete := suite.lastEvent()
	suite.Equal(3, complete.Count)
	suite.Equal(res.Session, complete.Session)
	suite.Equal(res.Session, suite.svc.Catalog().Session())
}

func (suite *DiscoveryTestSuite) TestDuplicateAdvertisementKeepsFirstName() {
	// GOAL: Verify the skip-duplicates policy
	//
	// TEST SCENARIO: same address reported twice with different names → one entry → first-seen name

	suite.radio.On("Open", mock.Anything).Return(nil)
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Run(testutils.ReportAll(
			testutils.Advertisement{Name: "First", Address: "AA:BB:CC:DD:EE:01"},
			testutils.Advertisement{Name: "Second", Address: "AA:BB:CC:DD:EE:01"},
		)).
		Return(1, nil)

	res, err := suite.svc.StartScan(context.Background())

	suite.Require().NoError(err)
	suite.Require().Len(res.Devices, 1, "duplicate MUST be skipped")
	suite.Equal("First", res.Devices[0].Name, "first-seen name MUST win")
	suite.Equal(1, suite.lastEvent().Count)
}

func (suite *DiscoveryTestSuite) TestScanWhileScanningIsNoOp() {
	// GOAL: Verify single-flight: a second StartScan during a scan changes nothing
	//
	// TEST SCENARIO: first scan blocks inside Discover → second StartScan returns nil,nil → catalog and state unchanged

	entered := make(chan struct{})
	release := make(chan struct{})

	suite.radio.On("Open", mock.Anything).Return(nil).Once()
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			handler := args.Get(1).(device.DiscoverHandler)
			handler("Speaker", device.MustParse("AA:BB:CC:DD:EE:01"))
			close(entered)
			<-release
		}).
		Return(1, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := suite.svc.StartScan(context.Background())
		done <- err
	}()

	<-entered
	suite.True(suite.svc.IsScanning())
	before := suite.svc.Catalog().Devices()
	beforeSession := suite.svc.Catalog().Session()
	eventsBefore := len(suite.eventTypes())

	res, err := suite.svc.StartScan(context.Background())

	suite.NoError(err, "no-op scan MUST NOT fail")
	suite.Nil(res, "no-op scan MUST NOT return a result")
	suite.True(suite.svc.IsScanning(), "in-flight scan MUST keep running")
	suite.Equal(before, suite.svc.Catalog().Devices(), "catalog MUST be unchanged")
	suite.Equal(beforeSession, suite.svc.Catalog().Session())
	suite.Len(suite.eventTypes(), eventsBefore, "no-op scan MUST NOT emit events")

	close(release)
	suite.NoError(<-done)
	suite.False(suite.svc.IsScanning())
}

func (suite *DiscoveryTestSuite) TestRadioOpenFailure() {
	// GOAL: Verify a radio that cannot be initialized yields RadioUnavailable and an empty catalog
	//
	// TEST SCENARIO: Open fails → StartScan returns RadioUnavailable → catalog empty → ScanFailed emitted

	suite.radio.On("Open", mock.Anything).Return(errors.New("adapter init failed"))

	res, err := suite.svc.StartScan(context.Background())

	suite.Nil(res)
	suite.ErrorIs(err, device.ErrRadioUnavailable, "open failure MUST be RadioUnavailable")
	suite.Equal(0, suite.svc.Catalog().Len(), "catalog MUST be empty")
	suite.False(suite.svc.IsScanning(), "service MUST return to idle")
	suite.radio.AssertNotCalled(suite.T(), "Discover", mock.Anything, mock.Anything)

	ev := suite.lastEvent()
	suite.Equal(discovery.EventScanFailed, ev.Type)
	suite.ErrorIs(ev.Err, device.ErrRadioUnavailable)
}

func (suite *DiscoveryTestSuite) TestDiscoverErrorLeavesCatalogEmpty() {
	tests := []struct {
		name        string
		discoverErr error
		expectRadio bool
	}{
		{
			name:        "adapter not ready is normalized",
			discoverErr: errors.New("org.bluez.Error.NotReady: Resource Not Ready"),
			expectRadio: true,
		},
		{
			name:        "other errors are wrapped",
			discoverErr: errors.New("inquiry aborted"),
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.SetupTest()
			suite.radio.On("Open", mock.Anything).Return(nil)
			suite.radio.On("Discover", mock.Anything, mock.Anything).
				Run(testutils.ReportAll(testutils.Advertisement{Name: "Speaker", Address: "AA:BB:CC:DD:EE:01"})).
				Return(1, tt.discoverErr)

			res, err := suite.svc.StartScan(context.Background())

			suite.Nil(res)
			suite.Require().Error(err)
			suite.Equal(tt.expectRadio, errors.Is(err, device.ErrRadioUnavailable))
			suite.ErrorIs(err, tt.discoverErr, "platform error MUST stay in the chain")
			suite.Equal(0, suite.svc.Catalog().Len(), "partial results MUST be discarded")
			suite.Equal(discovery.EventScanFailed, suite.lastEvent().Type)
		})
	}
}

func (suite *DiscoveryTestSuite) TestDeadlineEndsScanNormally() {
	// GOAL: Verify the scan duration bounds Discover and its expiry is a normal completion

	suite.radio.On("Open", mock.Anything).Return(nil)
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, handler device.DiscoverHandler) (int, error) {
			handler("Speaker", device.MustParse("AA:BB:CC:DD:EE:01"))
			<-ctx.Done()
			return 1, ctx.Err()
		})

	svc := discovery.NewService(suite.radio, &discovery.ScanOptions{Duration: 20 * time.Millisecond}, suite.helper.Logger)
	res, err := svc.StartScan(context.Background())

	suite.Require().NoError(err, "deadline MUST end the scan without error")
	suite.Require().Len(res.Devices, 1)
	suite.Equal(device.DefaultUnknownName, discovery.DefaultScanOptions().UnknownName)
}

func (suite *DiscoveryTestSuite) TestNewScanClearsPreviousCatalog() {
	suite.radio.On("Open", mock.Anything).Return(nil)
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Run(testutils.ReportAll(testutils.Advertisement{Name: "Speaker", Address: "AA:BB:CC:DD:EE:01"})).
		Return(1, nil).Once()
	suite.radio.On("Discover", mock.Anything, mock.Anything).
		Run(testutils.ReportAll(testutils.Advertisement{Name: "Phone", Address: "AA:BB:CC:DD:EE:02"})).
		Return(1, nil).Once()

	first, err := suite.svc.StartScan(context.Background())
	suite.Require().NoError(err)
	second, err := suite.svc.StartScan(context.Background())
	suite.Require().NoError(err)

	suite.NotEqual(first.Session, second.Session, "each scan MUST get a new session")
	suite.NotEqual(uuid.Nil, second.Session)
	suite.Equal([]string{"Phone [AA:BB:CC:DD:EE:02]"}, suite.svc.Catalog().Labels())
}

func (suite *DiscoveryTestSuite) TestEventTypeString() {
	suite.Equal("scan_started", discovery.EventScanStarted.String())
	suite.Equal("device_found", discovery.EventDeviceFound.String())
	suite.Equal("scan_complete", discovery.EventScanComplete.String())
	suite.Equal("scan_failed", discovery.EventScanFailed.String())
	suite.Equal("event(42)", discovery.EventType(42).String())
}

func TestDiscoveryTestSuite(t *testing.T) {
	suite.Run(t, new(DiscoveryTestSuite))
}
