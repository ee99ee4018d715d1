// Package simradio provides a YAML-scripted Bluetooth Classic radio for demos and tests.
package simradio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/internal/device"
	"gopkg.in/yaml.v3"
)

// Fixture describes what the simulated radio reports.
//
//	unavailable: false
//	inquiry_delay: 200ms
//	devices:
//	  - name: Speaker
//	    address: AA:BB:CC:DD:EE:01
//	  - name: Printer
//	    address: AA:BB:CC:DD:EE:02
//	    connect_error: refused
type Fixture struct {
	// Unavailable makes Open fail as if no adapter were present.
	Unavailable bool `yaml:"unavailable"`
	// InquiryDelay is waited before each device is reported.
	InquiryDelay time.Duration   `yaml:"inquiry_delay"`
	Devices      []FixtureDevice `yaml:"devices"`
}

// FixtureDevice is one remote device. The same address may appear more than
// once to simulate repeated inquiry responses.
type FixtureDevice struct {
	Name         string        `yaml:"name"`
	Address      string        `yaml:"address"`
	ConnectError string        `yaml:"connect_error"`
	ConnectDelay time.Duration `yaml:"connect_delay"`
	// DropAfter closes an established link after the given time.
	DropAfter time.Duration `yaml:"drop_after"`
}

type remote struct {
	name    string
	addr    device.Address
	fixture FixtureDevice
}

// Radio replays a Fixture. It implements device.Radio and device.LinkWatcher.
type Radio struct {
	fixture Fixture
	remotes []remote
	logger  *logrus.Logger

	opened bool
	mu     sync.Mutex
	onDown func(device.Address)

	links *hashmap.Map[string, *time.Timer]
}

var _ device.Radio = (*Radio)(nil)
var _ device.LinkWatcher = (*Radio)(nil)

// LoadFixture reads and parses a YAML fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sim file %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sim file %s: %w", path, err)
	}
	return &f, nil
}

// New creates a simulated radio. Every fixture address must be well formed.
func New(f Fixture, logger *logrus.Logger) (*Radio, error) {
	if logger == nil {
		logger = logrus.New()
	}

	remotes := make([]remote, 0, len(f.Devices))
	for i, d := range f.Devices {
		addr, err := device.Parse(d.Address)
		if err != nil {
			return nil, fmt.Errorf("sim device %d: %w", i, err)
		}
		remotes = append(remotes, remote{name: d.Name, addr: addr, fixture: d})
	}

	return &Radio{
		fixture: f,
		remotes: remotes,
		logger:  logger,
		links:   hashmap.New[string, *time.Timer](),
	}, nil
}

// Open fails when the fixture marks the adapter unavailable
func (r *Radio) Open(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fixture.Unavailable {
		return errors.New("no bluetooth adapter found")
	}
	r.opened = true
	return nil
}

// Discover reports every fixture device in order and returns the number of unique addresses
func (r *Radio) Discover(ctx context.Context, handler device.DiscoverHandler) (int, error) {
	if err := r.requireOpen(); err != nil {
		return 0, err
	}

	seen := hashmap.New[string, struct{}]()
	for _, rm := range r.remotes {
		if r.fixture.InquiryDelay > 0 {
			select {
			case <-ctx.Done():
				return seen.Len(), ctx.Err()
			case <-time.After(r.fixture.InquiryDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return seen.Len(), err
		}

		seen.Insert(rm.addr.String(), struct{}{})
		r.logger.WithFields(logrus.Fields{
			"name":    rm.name,
			"address": rm.addr,
		}).Debug("Simulated inquiry response")
		handler(rm.name, rm.addr)
	}
	return seen.Len(), nil
}

// Connect succeeds unless the fixture device carries a connect_error.
// Addresses not in the fixture time out like an absent device would.
func (r *Radio) Connect(ctx context.Context, addr device.Address) error {
	if err := r.requireOpen(); err != nil {
		return err
	}

	rm, ok := r.lookup(addr)
	if !ok {
		return errors.New("page timeout")
	}
	if r.IsConnected(addr) {
		return fmt.Errorf("%s: already connected", addr)
	}

	if rm.fixture.ConnectDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rm.fixture.ConnectDelay):
		}
	}

	if rm.fixture.ConnectError != "" {
		return errors.New(rm.fixture.ConnectError)
	}

	var timer *time.Timer
	if rm.fixture.DropAfter > 0 {
		timer = time.AfterFunc(rm.fixture.DropAfter, func() { r.drop(addr) })
	}
	r.links.Set(addr.String(), timer)
	return nil
}

// Disconnect closes the link to addr
func (r *Radio) Disconnect(_ context.Context, addr device.Address) error {
	timer, ok := r.links.Get(addr.String())
	if !ok {
		return fmt.Errorf("%s: not connected", addr)
	}
	if timer != nil {
		timer.Stop()
	}
	r.links.Del(addr.String())
	return nil
}

// WatchLinks registers the link-drop callback
func (r *Radio) WatchLinks(onDown func(device.Address)) {
	r.mu.Lock()
	r.onDown = onDown
	r.mu.Unlock()
}

// Close drops all links silently
func (r *Radio) Close() error {
	var keys []string
	r.links.Range(func(key string, timer *time.Timer) bool {
		if timer != nil {
			timer.Stop()
		}
		keys = append(keys, key)
		return true
	})
	for _, key := range keys {
		r.links.Del(key)
	}

	r.mu.Lock()
	r.opened = false
	r.mu.Unlock()
	return nil
}

// IsConnected reports whether a link to addr is up
func (r *Radio) IsConnected(addr device.Address) bool {
	_, ok := r.links.Get(addr.String())
	return ok
}

func (r *Radio) drop(addr device.Address) {
	if !r.links.Del(addr.String()) {
		return
	}
	r.logger.WithField("address", addr).Debug("Simulated link drop")

	r.mu.Lock()
	onDown := r.onDown
	r.mu.Unlock()
	if onDown != nil {
		onDown(addr)
	}
}

func (r *Radio) lookup(addr device.Address) (remote, bool) {
	for _, rm := range r.remotes {
		if rm.addr == addr {
			return rm, true
		}
	}
	return remote{}, false
}

func (r *Radio) requireOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return errors.New("radio not open")
	}
	return nil
}
