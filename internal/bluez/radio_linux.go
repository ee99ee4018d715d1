//go:build linux

package bluez

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/groutine"
	"golang.org/x/sys/unix"
)

var pathCounter uint64

// Radio is a BlueZ-backed device.Radio. It also reports link drops.
type Radio struct {
	adapterName string
	logger      *logrus.Logger

	mu       sync.Mutex
	bus      *dbus.Conn
	adapter  dbus.ObjectPath
	profile  *profile
	sigCh    chan *dbus.Signal
	done     chan struct{}
	cleanup  []func()
	onDown   func(device.Address)
	isClosed bool

	// discoverMu guards the active inquiry handler so none runs after Discover returns
	discoverMu sync.Mutex
	discoverFn func(dbus.ObjectPath, map[string]dbus.Variant)

	links *hashmap.Map[string, *os.File]
}

var _ device.Radio = (*Radio)(nil)
var _ device.LinkWatcher = (*Radio)(nil)

// New creates a radio bound to the named adapter (hci0, ...). Nothing touches
// the bus until Open.
func New(adapter string, logger *logrus.Logger) *Radio {
	if logger == nil {
		logger = logrus.New()
	}
	return &Radio{
		adapterName: adapter,
		logger:      logger,
		links:       hashmap.New[string, *os.File](),
	}
}

// Open connects to the system bus, checks the adapter is powered and registers
// the SPP client profile. Subsequent calls are no-ops.
func (r *Radio) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClosed {
		return errors.New("bluez: radio closed")
	}
	if r.bus != nil {
		return nil
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("bluez: connect system bus: %w", err)
	}
	r.bus = bus
	r.cleanup = append(r.cleanup, func() { _ = bus.Close() })

	if err := r.openLocked(ctx); err != nil {
		r.runCleanupLocked()
		r.bus = nil
		return err
	}

	r.logger.WithField("adapter", r.adapter).Debug("BlueZ radio opened")
	return nil
}

func (r *Radio) openLocked(ctx context.Context) error {
	var objs managedObjects
	call := r.bus.Object(bluezService, "/").CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return fmt.Errorf("bluez: GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objs); err != nil {
		return fmt.Errorf("bluez: decode GetManagedObjects: %w", err)
	}

	adapter, props, err := pickAdapter(objs, r.adapterName)
	if err != nil {
		return err
	}
	if err := checkPowered(adapter, props); err != nil {
		return err
	}
	r.adapter = adapter

	// Profile1 for the client role; BlueZ delivers RFCOMM sockets to it
	r.profile = newProfile(r.logger, r.linkClosed)
	id := atomic.AddUint64(&pathCounter, 1)
	profilePath := dbus.ObjectPath("/org/btpick/profile/spp" + strconv.FormatUint(id, 10))
	if err := r.bus.Export(r.profile, profilePath, profileInterfaceName); err != nil {
		return fmt.Errorf("bluez: export profile: %w", err)
	}
	pm := r.bus.Object(bluezService, bluezRoot)
	opts := map[string]dbus.Variant{
		"Role":                  dbus.MakeVariant("client"),
		"AutoConnect":           dbus.MakeVariant(false),
		"RequireAuthentication": dbus.MakeVariant(false),
	}
	if call := pm.CallWithContext(ctx, profileManagerIface+".RegisterProfile", 0, profilePath, SPPUUID, opts); call.Err != nil {
		_ = r.bus.Export(nil, profilePath, profileInterfaceName)
		return fmt.Errorf("bluez: RegisterProfile: %w", call.Err)
	}
	r.cleanup = append(r.cleanup, func() {
		_ = pm.Call(profileManagerIface+".UnregisterProfile", 0, profilePath).Err
		_ = r.bus.Export(nil, profilePath, profileInterfaceName)
	})

	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(objManagerIface), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchInterface(propsIface), dbus.WithMatchMember("PropertiesChanged"), dbus.WithMatchArg(0, deviceIface)},
	}
	for _, m := range matches {
		if err := r.bus.AddMatchSignalContext(ctx, m...); err != nil {
			return fmt.Errorf("bluez: AddMatchSignal: %w", err)
		}
		opts := m
		r.cleanup = append(r.cleanup, func() { _ = r.bus.RemoveMatchSignal(opts...) })
	}

	r.sigCh = make(chan *dbus.Signal, 64)
	r.done = make(chan struct{})
	r.bus.Signal(r.sigCh)
	sigCh, done := r.sigCh, r.done
	r.cleanup = append(r.cleanup, func() {
		r.bus.RemoveSignal(sigCh)
		close(done)
	})
	groutine.Go(context.Background(), "bluez-dispatch", func(ctx context.Context) {
		r.dispatch(ctx, sigCh, done)
	})

	return nil
}

// dispatch routes bus signals to the active inquiry and the link watcher
func (r *Radio) dispatch(ctx context.Context, sigCh <-chan *dbus.Signal, done <-chan struct{}) {
	defer r.logger.Debugf("%s: exiting", groutine.Name(ctx))
	for {
		select {
		case <-done:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			if addr, ok := linkDown(sig); ok {
				r.linkClosed(addr)
			}
			if p, props, ok := inquiryResponse(sig); ok {
				r.discoverMu.Lock()
				if r.discoverFn != nil {
					r.discoverFn(p, props)
				}
				r.discoverMu.Unlock()
			}
		}
	}
}

// Discover runs a BR/EDR inquiry until ctx is done and returns the number of
// unique devices that responded.
func (r *Radio) Discover(ctx context.Context, handler device.DiscoverHandler) (int, error) {
	bus, adapter, err := r.opened()
	if err != nil {
		return 0, err
	}

	seen := hashmap.New[string, struct{}]()
	r.discoverMu.Lock()
	r.discoverFn = func(p dbus.ObjectPath, props map[string]dbus.Variant) {
		name, addr, ok := sighting(p, props)
		if !ok {
			return
		}
		if _, known := props["Name"]; !known && name == "" {
			// RSSI-only update for a cached device; fetch its name
			name = r.remoteName(bus, p)
		}
		seen.Insert(addr.String(), struct{}{})
		handler(name, addr)
	}
	r.discoverMu.Unlock()

	defer func() {
		r.discoverMu.Lock()
		r.discoverFn = nil
		r.discoverMu.Unlock()
	}()

	obj := bus.Object(bluezService, adapter)
	filter := map[string]dbus.Variant{"Transport": dbus.MakeVariant("bredr")}
	if call := obj.CallWithContext(ctx, adapterIface+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		r.logger.WithError(call.Err).Warn("Failed to set BR/EDR discovery filter")
	}
	if call := obj.CallWithContext(ctx, adapterIface+".StartDiscovery", 0); call.Err != nil {
		return 0, fmt.Errorf("bluez: StartDiscovery: %w", call.Err)
	}
	defer func() {
		if err := obj.Call(adapterIface+".StopDiscovery", 0).Err; err != nil {
			r.logger.WithError(err).Debug("StopDiscovery failed")
		}
	}()

	<-ctx.Done()
	return seen.Len(), ctx.Err()
}

func (r *Radio) remoteName(bus *dbus.Conn, p dbus.ObjectPath) string {
	v, err := bus.Object(bluezService, p).GetProperty(deviceIface + ".Name")
	if err != nil {
		return ""
	}
	name, _ := v.Value().(string)
	return name
}

// Connect opens an SPP link to addr. The platform error text is returned unchanged.
func (r *Radio) Connect(ctx context.Context, addr device.Address) error {
	bus, adapter, err := r.opened()
	if err != nil {
		return err
	}
	r.mu.Lock()
	prof := r.profile
	r.mu.Unlock()

	devPath := devicePath(adapter, addr)
	wait := prof.expect(devPath)
	defer prof.forget(devPath)

	call := bus.Object(bluezService, devPath).CallWithContext(ctx, deviceIface+".ConnectProfile", 0, SPPUUID)
	if call.Err != nil {
		return call.Err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case f := <-wait:
		if old, loaded := r.links.GetOrInsert(addr.String(), f); loaded {
			closeLink(old)
			r.links.Set(addr.String(), f)
		}
		r.logger.WithFields(logrus.Fields{
			"address": addr,
			"fd":      f.Fd(),
		}).Debug("RFCOMM socket received")
		return nil
	}
}

// Disconnect closes the RFCOMM socket and the baseband link
func (r *Radio) Disconnect(ctx context.Context, addr device.Address) error {
	bus, adapter, err := r.opened()
	if err != nil {
		return err
	}

	if f, ok := r.links.Get(addr.String()); ok {
		r.links.Del(addr.String())
		closeLink(f)
	}

	if call := bus.Object(bluezService, devicePath(adapter, addr)).CallWithContext(ctx, deviceIface+".Disconnect", 0); call.Err != nil {
		return call.Err
	}
	return nil
}

// WatchLinks registers the link-drop callback
func (r *Radio) WatchLinks(onDown func(device.Address)) {
	r.mu.Lock()
	r.onDown = onDown
	r.mu.Unlock()
}

// Close releases sockets, unregisters the profile and closes the bus. It is idempotent.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.isClosed {
		r.mu.Unlock()
		return nil
	}
	r.isClosed = true

	var keys []string
	r.links.Range(func(key string, f *os.File) bool {
		closeLink(f)
		keys = append(keys, key)
		return true
	})
	for _, k := range keys {
		r.links.Del(k)
	}

	r.runCleanupLocked()
	r.bus = nil
	r.mu.Unlock()
	return nil
}

// runCleanupLocked releases resources in reverse order of acquisition
func (r *Radio) runCleanupLocked() {
	cleanup := r.cleanup
	r.cleanup = nil
	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}

// linkClosed drops a tracked link and notifies the watcher once
func (r *Radio) linkClosed(addr device.Address) {
	f, ok := r.links.Get(addr.String())
	if !ok || !r.links.Del(addr.String()) {
		return
	}
	closeLink(f)
	r.logger.WithField("address", addr).Debug("SPP link closed by platform")

	r.mu.Lock()
	onDown := r.onDown
	r.mu.Unlock()
	if onDown != nil {
		onDown(addr)
	}
}

// closeLink shuts the RFCOMM socket down in both directions so the remote
// sees the hangup even if BlueZ still holds a duplicate descriptor.
func closeLink(f *os.File) {
	_ = unix.Shutdown(int(f.Fd()), unix.SHUT_RDWR)
	_ = f.Close()
}

func (r *Radio) opened() (*dbus.Conn, dbus.ObjectPath, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus == nil {
		return nil, "", errors.New("bluez: radio not open")
	}
	return r.bus, r.adapter, nil
}
