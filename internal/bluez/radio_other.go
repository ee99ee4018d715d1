//go:build !linux

package bluez

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
)

var errUnsupported = errors.New("no bluetooth adapter: BlueZ is only available on linux")

// Radio reports the adapter as unavailable on platforms without BlueZ.
type Radio struct {
	logger *logrus.Logger
}

var _ device.Radio = (*Radio)(nil)

// New returns a radio whose Open always fails.
func New(_ string, logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{logger: logger}
}

func (r *Radio) Open(context.Context) error {
	r.logger.Debug("BlueZ radio requested on a non-linux platform")
	return errUnsupported
}

func (r *Radio) Discover(context.Context, device.DiscoverHandler) (int, error) {
	return 0, errUnsupported
}

func (r *Radio) Connect(context.Context, device.Address) error { return errUnsupported }

func (r *Radio) Disconnect(context.Context, device.Address) error { return errUnsupported }

func (r *Radio) Close() error { return nil }
