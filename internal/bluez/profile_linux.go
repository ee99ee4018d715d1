//go:build linux

package bluez

import (
	"os"
	"sync"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
)

// profile implements org.bluez.Profile1 for the SPP client role and hands
// each RFCOMM socket to the Connect call waiting for that device.
type profile struct {
	logger       *logrus.Logger
	onDisconnect func(device.Address)

	mu      sync.Mutex
	waiters map[dbus.ObjectPath]chan *os.File
}

func newProfile(logger *logrus.Logger, onDisconnect func(device.Address)) *profile {
	return &profile{
		logger:       logger,
		onDisconnect: onDisconnect,
		waiters:      make(map[dbus.ObjectPath]chan *os.File),
	}
}

// expect registers interest in the next socket for devPath
func (p *profile) expect(devPath dbus.ObjectPath) <-chan *os.File {
	ch := make(chan *os.File, 1)
	p.mu.Lock()
	p.waiters[devPath] = ch
	p.mu.Unlock()
	return ch
}

// forget drops the waiter and closes a socket that arrived too late
func (p *profile) forget(devPath dbus.ObjectPath) {
	p.mu.Lock()
	ch, ok := p.waiters[devPath]
	delete(p.waiters, devPath)
	p.mu.Unlock()

	if !ok {
		return
	}
	select {
	case f := <-ch:
		_ = f.Close()
	default:
	}
}

// Release is called by BlueZ when the profile is unregistered.
func (p *profile) Release() *dbus.Error { return nil }

// Cancel is called when a pending request is cancelled.
func (p *profile) Cancel() *dbus.Error { return nil }

// NewConnection delivers the RFCOMM socket to the waiting Connect call.
func (p *profile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	f := os.NewFile(uintptr(fd), "rfcomm:"+string(dev))

	p.mu.Lock()
	ch, ok := p.waiters[dev]
	if ok {
		delete(p.waiters, dev)
	}
	p.mu.Unlock()

	if !ok {
		_ = f.Close()
		p.logger.WithField("device", dev).Debug("Rejecting unsolicited SPP connection")
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"no pending connect"}}
	}

	ch <- f
	return nil
}

// RequestDisconnection is called when the remote or BlueZ tears the profile down.
func (p *profile) RequestDisconnection(dev dbus.ObjectPath) *dbus.Error {
	if addr, ok := macFromPath(dev); ok && p.onDisconnect != nil {
		p.onDisconnect(addr)
	}
	return nil
}
