// Package discovery drives Bluetooth Classic scans and owns the resulting device catalog.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
)

// EventType marks a step of the scan lifecycle
type EventType int

const (
	EventScanStarted EventType = iota
	EventDeviceFound
	EventScanComplete
	EventScanFailed
)

func (t EventType) String() string {
	switch t {
	case EventScanStarted:
		return "scan_started"
	case EventDeviceFound:
		return "device_found"
	case EventScanComplete:
		return "scan_complete"
	case EventScanFailed:
		return "scan_failed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is delivered to registered handlers.
// Device is set for EventDeviceFound, Count for EventScanComplete and Err for EventScanFailed.
type Event struct {
	Type    EventType
	Session uuid.UUID
	Device  device.DiscoveredDevice
	Count   int
	Err     error
}

// EventHandler observes scan progress. Handlers run on the scanning goroutine.
type EventHandler func(Event)

// ScanOptions configures scanning behavior
type ScanOptions struct {
	// Duration bounds the platform inquiry; zero leaves it to the platform.
	Duration time.Duration
	// UnknownName replaces an empty advertised name.
	UnknownName string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:    10 * time.Second,
		UnknownName: device.DefaultUnknownName,
	}
}

// Result is the frozen outcome of one scan
type Result struct {
	Session uuid.UUID
	Devices []device.DiscoveredDevice
	// Reported is the unique device count returned by the platform primitive.
	Reported int
}

// Service runs single-flight scans and owns the device catalog.
type Service struct {
	radio    device.Radio
	catalog  *device.Catalog
	logger   *logrus.Logger
	opts     ScanOptions
	scanning atomic.Bool

	handlersMu sync.RWMutex
	handlers   []EventHandler
}

// NewService creates a discovery service over the given radio
func NewService(radio device.Radio, opts *ScanOptions, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultScanOptions()
	}

	return &Service{
		radio:   radio,
		catalog: device.NewCatalog(),
		logger:  logger,
		opts:    *opts,
	}
}

// OnEvent registers a handler for scan lifecycle events
func (s *Service) OnEvent(h EventHandler) {
	s.handlersMu.Lock()
	s.handlers = append(s.handlers, h)
	s.handlersMu.Unlock()
}

// Catalog returns the read-only view of the current scan result
func (s *Service) Catalog() device.CatalogReader {
	return s.catalog
}

// IsScanning reports whether a scan is in flight
func (s *Service) IsScanning() bool {
	return s.scanning.Load()
}

// StartScan clears the catalog, runs the platform inquiry and returns the frozen result.
//
// A call made while another scan is in flight is a no-op: it returns a nil
// Result and nil error and leaves the catalog untouched.
//
// On failure the catalog is left empty and the error is returned; the scan is
// not retried.
func (s *Service) StartScan(ctx context.Context) (*Result, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.logger.Debug("Scan already in progress, ignoring request")
		return nil, nil
	}

	session := uuid.New()
	s.catalog.Reset(session)
	s.emit(Event{Type: EventScanStarted, Session: session})

	s.logger.WithFields(logrus.Fields{
		"session":  session,
		"duration": s.opts.Duration,
	}).Info("Starting Bluetooth Classic scan...")

	if err := s.radio.Open(ctx); err != nil {
		return nil, s.fail(session, device.AsRadioUnavailable(err))
	}

	scanCtx := ctx
	if s.opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.opts.Duration)
		defer cancel()
	}

	reported, err := s.radio.Discover(scanCtx, func(name string, addr device.Address) {
		s.handleDevice(session, name, addr)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = device.NormalizeError(err)
		if !errors.Is(err, device.ErrRadioUnavailable) {
			err = fmt.Errorf("scan failed: %w", err)
		}
		return nil, s.fail(session, err)
	}

	s.catalog.Freeze()
	devices := s.catalog.Devices()
	s.scanning.Store(false)

	s.logger.WithFields(logrus.Fields{
		"session":      session,
		"device_count": len(devices),
		"reported":     reported,
	}).Info("Bluetooth Classic scan completed")

	s.emit(Event{Type: EventScanComplete, Session: session, Count: len(devices)})

	return &Result{
		Session:  session,
		Devices:  devices,
		Reported: reported,
	}, nil
}

// handleDevice records a newly reported device, skipping duplicates
func (s *Service) handleDevice(session uuid.UUID, name string, addr device.Address) {
	dev := device.NewDiscoveredDevice(name, addr, s.opts.UnknownName)

	if !s.catalog.Add(dev) {
		s.logger.WithField("address", addr).Debug("Skipping duplicate device")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"device":  dev.Name,
		"address": addr,
	}).Info("Discovered new device")

	s.emit(Event{Type: EventDeviceFound, Session: session, Device: dev})
}

// fail leaves the catalog empty, ends the scan and reports err
func (s *Service) fail(session uuid.UUID, err error) error {
	s.catalog.Reset(session)
	s.catalog.Freeze()
	s.scanning.Store(false)

	s.logger.WithError(err).Error("Bluetooth Classic scan failed")
	s.emit(Event{Type: EventScanFailed, Session: session, Err: err})
	return err
}

func (s *Service) emit(ev Event) {
	s.handlersMu.RLock()
	handlers := make([]EventHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
