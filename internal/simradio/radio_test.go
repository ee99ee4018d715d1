package simradio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const fixtureYAML = `
devices:
  - name: Speaker
    address: aa:bb:cc:dd:ee:01
  - name: ""
    address: AA:BB:CC:DD:EE:02
  - name: Speaker Again
    address: AA:BB:CC:DD:EE:01
  - name: Printer
    address: AA:BB:CC:DD:EE:03
    connect_error: refused
`

type SimRadioTestSuite struct {
	suite.Suite
	helper *testutils.TestHelper
	radio  *Radio
}

func (suite *SimRadioTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())

	path := filepath.Join(suite.T().TempDir(), "devices.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(fixtureYAML), 0o600))

	f, err := LoadFixture(path)
	suite.Require().NoError(err, "fixture MUST load")

	suite.radio, err = New(*f, suite.helper.Logger)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.radio.Open(context.Background()))
}

func (suite *SimRadioTestSuite) TearDownTest() {
	_ = suite.radio.Close()
}

func (suite *SimRadioTestSuite) TestDiscoverReportsInOrderAndCountsUnique() {
	type seen struct {
		name string
		addr string
	}
	var got []seen

	count, err := suite.radio.Discover(context.Background(), func(name string, addr device.Address) {
		got = append(got, seen{name, addr.String()})
	})

	suite.Require().NoError(err)
	suite.Equal(3, count, "count MUST be unique addresses")
	suite.Equal([]seen{
		{"Speaker", "AA:BB:CC:DD:EE:01"},
		{"", "AA:BB:CC:DD:EE:02"},
		{"Speaker Again", "AA:BB:CC:DD:EE:01"},
		{"Printer", "AA:BB:CC:DD:EE:03"},
	}, got, "every response MUST be forwarded, duplicates included")
}

func (suite *SimRadioTestSuite) TestDiscoverHonorsContext() {
	suite.radio.fixture.InquiryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	count, err := suite.radio.Discover(ctx, func(string, device.Address) {})

	suite.ErrorIs(err, context.DeadlineExceeded)
	suite.Equal(0, count)
}

func (suite *SimRadioTestSuite) TestConnectOutcomes() {
	speaker := device.MustParse("AA:BB:CC:DD:EE:01")

	suite.NoError(suite.radio.Connect(context.Background(), speaker))
	suite.True(suite.radio.IsConnected(speaker))
	suite.EqualError(suite.radio.Connect(context.Background(), speaker), "AA:BB:CC:DD:EE:01: already connected",
		"second connect to a live link MUST be rejected")

	err := suite.radio.Connect(context.Background(), device.MustParse("AA:BB:CC:DD:EE:03"))
	suite.EqualError(err, "refused")

	err = suite.radio.Connect(context.Background(), device.MustParse("00:00:00:00:00:99"))
	suite.EqualError(err, "page timeout")

	suite.NoError(suite.radio.Disconnect(context.Background(), speaker))
	suite.False(suite.radio.IsConnected(speaker))
	suite.Error(suite.radio.Disconnect(context.Background(), speaker), "second disconnect MUST fail")
}

func (suite *SimRadioTestSuite) TestLinkDropIsReported() {
	speaker := device.MustParse("AA:BB:CC:DD:EE:01")
	suite.radio.remotes[0].fixture.DropAfter = 10 * time.Millisecond

	dropped := make(chan device.Address, 1)
	suite.radio.WatchLinks(func(addr device.Address) { dropped <- addr })

	suite.Require().NoError(suite.radio.Connect(context.Background(), speaker))

	select {
	case addr := <-dropped:
		suite.Equal(speaker, addr)
		suite.False(suite.radio.IsConnected(speaker))
	case <-time.After(time.Second):
		suite.Fail("link drop MUST be reported")
	}
}

func (suite *SimRadioTestSuite) TestRequiresOpen() {
	suite.Require().NoError(suite.radio.Close())

	_, err := suite.radio.Discover(context.Background(), func(string, device.Address) {})
	suite.Error(err)
	suite.Error(suite.radio.Connect(context.Background(), device.MustParse("AA:BB:CC:DD:EE:01")))
}

func TestSimRadioTestSuite(t *testing.T) {
	suite.Run(t, new(SimRadioTestSuite))
}

func TestUnavailableAdapter(t *testing.T) {
	r, err := New(Fixture{Unavailable: true}, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = r.Open(context.Background())
	if !device.IsKind(device.NormalizeError(err), device.RadioUnavailable) {
		t.Fatalf("expected radio unavailable, got %v", err)
	}
}

func TestNewRejectsMalformedAddress(t *testing.T) {
	_, err := New(Fixture{Devices: []FixtureDevice{{Name: "x", Address: "AA:BB"}}}, nil)
	if err == nil {
		t.Fatal("expected malformed address error")
	}
	if !device.IsKind(err, device.MalformedAddress) {
		t.Fatalf("expected MalformedAddress, got %v", err)
	}
}
