package radiofactory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/srg/btpick/internal/bluez"
	"github.com/srg/btpick/internal/simradio"
	"github.com/srg/btpick/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadioFactory(t *testing.T) {
	simFile := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(simFile, []byte("devices:\n  - name: Speaker\n    address: AA:BB:CC:DD:EE:01\n"), 0o600))

	t.Run("bluez", func(t *testing.T) {
		cfg := config.DefaultConfig()

		radio, err := RadioFactory(cfg, nil)

		require.NoError(t, err)
		assert.IsType(t, &bluez.Radio{}, radio)
	})

	t.Run("sim", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Radio = config.RadioSim
		cfg.SimFile = simFile

		radio, err := RadioFactory(cfg, nil)

		require.NoError(t, err)
		assert.IsType(t, &simradio.Radio{}, radio)
	})

	t.Run("sim with missing file", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Radio = config.RadioSim
		cfg.SimFile = filepath.Join(t.TempDir(), "absent.yaml")

		_, err := RadioFactory(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Radio = "usb"

		_, err := RadioFactory(cfg, nil)
		assert.EqualError(t, err, `unknown radio "usb"`)
	})
}
