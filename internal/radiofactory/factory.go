package radiofactory

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/bluez"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/simradio"
	"github.com/srg/btpick/pkg/config"
)

// RadioFactory creates the device.Radio selected by the configuration.
// This is a variable so that it can be overridden in tests.
var RadioFactory = func(cfg *config.Config, logger *logrus.Logger) (device.Radio, error) {
	switch cfg.Radio {
	case config.RadioSim:
		return NewSimRadio(cfg.SimFile, logger)
	case config.RadioBlueZ, "":
		return bluez.New(cfg.Adapter, logger), nil
	default:
		return nil, fmt.Errorf("unknown radio %q", cfg.Radio)
	}
}

// NewSimRadio builds a simulated radio from a YAML fixture file.
func NewSimRadio(path string, logger *logrus.Logger) (device.Radio, error) {
	f, err := simradio.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return simradio.New(*f, logger)
}
