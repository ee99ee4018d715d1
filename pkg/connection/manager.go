package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
)

// ConnectOptions configures connection attempts
type ConnectOptions struct {
	ConnectTimeout time.Duration
	// AutoAcknowledge lets a new attempt start from Failed without an explicit Acknowledge.
	AutoAcknowledge bool
}

// DefaultConnectOptions returns sensible defaults for a Bluetooth Classic serial connection
func DefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		ConnectTimeout:  30 * time.Second,
		AutoAcknowledge: false,
	}
}

// Manager owns the connection state machine.
//
//	Idle -> Connecting -> Connected -> Idle   (Disconnect or link drop)
//	            \-------> Failed    -> Idle   (Acknowledge)
//
// Only one attempt may be in progress; connect calls block until the platform
// reports the outcome.
type Manager struct {
	radio   device.Radio
	catalog device.CatalogReader
	logger  *logrus.Logger
	opts    ConnectOptions

	mu    sync.Mutex
	state State
	// dropPending records a link drop reported for the target while Connecting
	dropPending bool

	listenersMu sync.RWMutex
	listeners   []func(State)
}

// NewManager creates a connection manager. catalog is consulted only at the
// moment a selection is resolved.
func NewManager(radio device.Radio, catalog device.CatalogReader, opts *ConnectOptions, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultConnectOptions()
	}

	m := &Manager{
		radio:   radio,
		catalog: catalog,
		logger:  logger,
		opts:    *opts,
		state:   State{Kind: Idle},
	}

	if lw, ok := radio.(device.LinkWatcher); ok {
		lw.WatchLinks(m.LinkDown)
	}

	return m
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers a callback invoked after every transition
func (m *Manager) OnStateChange(fn func(State)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// errLinkDropped is the failure reason when the link drops before the attempt completes
var errLinkDropped = errors.New("link dropped")

// SelectAndConnect connects to the catalog entry at index.
// While busy it yields ConnectionBusy; otherwise an index outside the current
// catalog yields InvalidSelection. Neither changes the state.
func (m *Manager) SelectAndConnect(ctx context.Context, index int) error {
	if err := m.checkCanConnect(); err != nil {
		return err
	}
	if !m.catalog.Frozen() {
		return device.NewError(device.InvalidSelection, "scan in progress")
	}
	dev, ok := m.catalog.At(index)
	if !ok {
		return device.NewError(device.InvalidSelection, "index %d outside catalog of %d devices", index, m.catalog.Len())
	}
	return m.connect(ctx, dev.Address, dev.Name)
}

// SelectAndConnectHandle connects to the entry a session-tagged handle points at.
// Handles taken before the latest scan started yield InvalidSelection.
func (m *Manager) SelectAndConnectHandle(ctx context.Context, h device.Handle) error {
	if err := m.checkCanConnect(); err != nil {
		return err
	}
	if !m.catalog.Frozen() {
		return device.NewError(device.InvalidSelection, "scan in progress")
	}
	dev, ok := m.catalog.Resolve(h)
	if !ok {
		return device.NewError(device.InvalidSelection, "handle %s is stale or out of range", h)
	}
	return m.connect(ctx, dev.Address, dev.Name)
}

// SelectAndConnectByLabel connects to the address embedded in a rendered label.
// A malformed label fails with MalformedLabel before any state change.
func (m *Manager) SelectAndConnectByLabel(ctx context.Context, label string) error {
	addr, err := device.ExtractFromLabel(label)
	if err != nil {
		return err
	}

	name := ""
	if dev, ok := m.catalog.Lookup(addr); ok {
		name = dev.Name
	}
	return m.connect(ctx, addr, name)
}

// ConnectAddress connects straight to a raw address, bypassing the catalog.
// The all-zero address is rejected with MalformedAddress.
func (m *Manager) ConnectAddress(ctx context.Context, addr device.Address) error {
	if addr.IsZero() {
		return device.NewError(device.MalformedAddress, "%s is not a device address", addr)
	}
	return m.connect(ctx, addr, "")
}

func (m *Manager) connect(ctx context.Context, addr device.Address, name string) error {
	m.mu.Lock()
	if err := m.checkCanConnectLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state.Kind == Failed {
		m.logger.WithField("address", m.state.Target).Debug("Implicitly acknowledging previous failure")
	}
	m.state = State{Kind: Connecting, Target: addr}
	m.dropPending = false
	connecting := m.state
	m.mu.Unlock()
	m.notify(connecting)

	logger := m.logger.WithFields(logrus.Fields{
		"device":  name,
		"address": addr,
	})
	logger.Info("Connecting to device...")

	connectCtx := ctx
	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	var err, result error
	if err = m.radio.Open(connectCtx); err != nil {
		result = device.AsRadioUnavailable(err)
	} else if err = m.radio.Connect(connectCtx, addr); err != nil {
		result = device.NewConnectionFailed(err)
	}

	m.mu.Lock()
	if err == nil && m.dropPending {
		err = errLinkDropped
		result = device.NewConnectionFailed(err)
	}
	m.dropPending = false
	if err != nil {
		m.state = State{Kind: Failed, Target: addr, Reason: err.Error()}
	} else {
		m.state = State{Kind: Connected, Target: addr}
	}
	state := m.state
	m.mu.Unlock()
	m.notify(state)

	if result != nil {
		logger.WithError(err).Warn("Connection failed")
		return result
	}

	logger.Info("Connection established")
	return nil
}

func (m *Manager) checkCanConnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkCanConnectLocked()
}

// checkCanConnectLocked rejects attempts while another one is in progress,
// a link is up, or a failure has not been acknowledged.
func (m *Manager) checkCanConnectLocked() error {
	if m.state.Busy() {
		if m.state.Kind == Connecting {
			return device.NewError(device.ConnectionBusy, "connection to %s in progress", m.state.Target)
		}
		return device.NewError(device.ConnectionBusy, "already connected to %s", m.state.Target)
	}
	if m.state.Kind == Failed && !m.opts.AutoAcknowledge {
		return device.NewError(device.ConnectionBusy, "failure for %s not acknowledged", m.state.Target)
	}
	return nil
}

// Disconnect closes the current link and returns to Idle.
// It is a no-op unless the state is Connected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Kind == Connecting {
		target := m.state.Target
		m.mu.Unlock()
		return device.NewError(device.ConnectionBusy, "connection to %s in progress", target)
	}
	if m.state.Kind != Connected {
		m.mu.Unlock()
		m.logger.Debug("Disconnect requested while not connected")
		return nil
	}
	target := m.state.Target
	m.mu.Unlock()

	err := m.radio.Disconnect(ctx, target)

	m.toIdle(Connected, target)
	m.logger.WithField("address", target).Info("Disconnected")

	if err != nil {
		return fmt.Errorf("disconnect %s: %w", target, err)
	}
	return nil
}

// Acknowledge dismisses a reported failure, returning Failed to Idle.
// It has no effect in any other state.
func (m *Manager) Acknowledge() {
	m.mu.Lock()
	if m.state.Kind != Failed {
		m.mu.Unlock()
		return
	}
	target := m.state.Target
	m.mu.Unlock()

	m.toIdle(Failed, target)
}

// LinkDown handles a link drop reported by the platform. A drop for the
// target of an attempt still in progress fails that attempt once the
// platform returns.
func (m *Manager) LinkDown(addr device.Address) {
	m.mu.Lock()
	if m.state.Kind == Connecting && m.state.Target == addr {
		m.dropPending = true
		m.mu.Unlock()
		m.logger.WithField("address", addr).Warn("Link dropped while connecting")
		return
	}
	m.mu.Unlock()

	if m.toIdle(Connected, addr) {
		m.logger.WithField("address", addr).Warn("Link dropped")
	}
}

// toIdle moves to Idle only if the state is still from(target)
func (m *Manager) toIdle(from StateKind, target device.Address) bool {
	m.mu.Lock()
	if m.state.Kind != from || m.state.Target != target {
		m.mu.Unlock()
		return false
	}
	m.state = State{Kind: Idle}
	idle := m.state
	m.mu.Unlock()

	m.notify(idle)
	return true
}

func (m *Manager) notify(s State) {
	m.listenersMu.RLock()
	listeners := make([]func(State), len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}
