package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
	"github.com/stretchr/testify/mock"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// MustAddress parses a colon-hex address or fails the test.
func (h *TestHelper) MustAddress(text string) device.Address {
	h.T.Helper()
	addr, err := device.Parse(text)
	if err != nil {
		h.T.Fatalf("bad test address %q: %v", text, err)
	}
	return addr
}

// Advertisement is one scripted discovery report
type Advertisement struct {
	Name    string
	Address string
}

// ReportAll returns a mock Run function that feeds every advertisement to the
// handler passed to Radio.Discover, in order.
func ReportAll(advs ...Advertisement) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		handler := args.Get(1).(device.DiscoverHandler)
		for _, a := range advs {
			handler(a.Name, device.MustParse(a.Address))
		}
	}
}
