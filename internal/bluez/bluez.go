// Package bluez implements device.Radio on top of the BlueZ D-Bus API.
//
// Discovery is a BR/EDR-filtered Adapter1 inquiry. Connections use the Serial
// Port Profile: a client Profile1 object is registered with the ProfileManager
// and BlueZ hands over the RFCOMM socket through NewConnection.
package bluez

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/srg/btpick/internal/device"
)

const (
	bluezService         = "org.bluez"
	bluezRoot            = dbus.ObjectPath("/org/bluez")
	profileInterfaceName = "org.bluez.Profile1"
	profileManagerIface  = "org.bluez.ProfileManager1"
	deviceIface          = "org.bluez.Device1"
	adapterIface         = "org.bluez.Adapter1"
	objManagerIface      = "org.freedesktop.DBus.ObjectManager"
	propsIface           = "org.freedesktop.DBus.Properties"

	interfacesAdded   = objManagerIface + ".InterfacesAdded"
	propertiesChanged = propsIface + ".PropertiesChanged"
)

// SPPUUID is the Serial Port Profile service class
const SPPUUID = "00001101-0000-1000-8000-00805f9b34fb"

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// ErrNoAdapter is returned by Open when no matching adapter is registered
var ErrNoAdapter = errors.New("no bluetooth adapter found")

// pickAdapter returns the adapter object whose name (hci0, hci1, ...) matches.
// An empty name selects the first adapter in path order.
func pickAdapter(objs managedObjects, name string) (dbus.ObjectPath, map[string]dbus.Variant, error) {
	var paths []string
	for p, ifaces := range objs {
		if _, ok := ifaces[adapterIface]; ok {
			paths = append(paths, string(p))
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		if name == "" || path.Base(p) == name {
			op := dbus.ObjectPath(p)
			return op, objs[op][adapterIface], nil
		}
	}
	if name == "" {
		return "", nil, ErrNoAdapter
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoAdapter, name)
}

// checkPowered maps an unpowered adapter to the BlueZ NotPowered error text
func checkPowered(adapter dbus.ObjectPath, props map[string]dbus.Variant) error {
	v, ok := props["Powered"]
	if !ok {
		return nil
	}
	if powered, _ := v.Value().(bool); !powered {
		return fmt.Errorf("org.bluez.Error.NotPowered: adapter %s is powered off", path.Base(string(adapter)))
	}
	return nil
}

// macFromPath decodes .../dev_XX_XX_XX_XX_XX_XX
func macFromPath(p dbus.ObjectPath) (device.Address, bool) {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return device.Address{}, false
	}
	addr, err := device.Parse(strings.ReplaceAll(s[idx+5:], "_", ":"))
	if err != nil {
		return device.Address{}, false
	}
	return addr, true
}

func devicePath(adapter dbus.ObjectPath, addr device.Address) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.ReplaceAll(addr.String(), ":", "_"))
}

// inquiryResponse extracts a sighting from a discovery signal. New devices
// arrive through InterfacesAdded; devices BlueZ already knows only report a
// fresh RSSI through PropertiesChanged.
func inquiryResponse(sig *dbus.Signal) (dbus.ObjectPath, map[string]dbus.Variant, bool) {
	switch sig.Name {
	case interfacesAdded:
		if len(sig.Body) < 2 {
			return "", nil, false
		}
		p, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		props, ok := ifaces[deviceIface]
		if !ok {
			return "", nil, false
		}
		return p, props, true

	case propertiesChanged:
		iface, changed, ok := propertiesChangedBody(sig)
		if !ok || iface != deviceIface {
			return "", nil, false
		}
		if _, ok := changed["RSSI"]; !ok {
			return "", nil, false
		}
		return sig.Path, changed, true
	}
	return "", nil, false
}

// linkDown reports the address whose Device1.Connected property turned false
func linkDown(sig *dbus.Signal) (device.Address, bool) {
	if sig.Name != propertiesChanged {
		return device.Address{}, false
	}
	iface, changed, ok := propertiesChangedBody(sig)
	if !ok || iface != deviceIface {
		return device.Address{}, false
	}
	v, ok := changed["Connected"]
	if !ok {
		return device.Address{}, false
	}
	if connected, _ := v.Value().(bool); connected {
		return device.Address{}, false
	}
	return macFromPath(sig.Path)
}

func propertiesChangedBody(sig *dbus.Signal) (string, map[string]dbus.Variant, bool) {
	if len(sig.Body) < 2 {
		return "", nil, false
	}
	iface, _ := sig.Body[0].(string)
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	return iface, changed, ok
}

// sighting resolves the advertised name and address of a device object.
// Name is empty when the remote has not reported one.
func sighting(p dbus.ObjectPath, props map[string]dbus.Variant) (string, device.Address, bool) {
	var name string
	if v, ok := props["Name"]; ok {
		name, _ = v.Value().(string)
	}

	if v, ok := props["Address"]; ok {
		if s, _ := v.Value().(string); s != "" {
			if addr, err := device.Parse(s); err == nil {
				return name, addr, true
			}
		}
	}
	addr, ok := macFromPath(p)
	return name, addr, ok
}
