package device

import (
	"sync"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Catalog is the ordered table of devices found by one scan.
// Insertion order is discovery order and addresses are unique.
// The catalog accepts writes only between Reset and Freeze.
type Catalog struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[Address, DiscoveredDevice]
	session uuid.UUID
	frozen  bool
}

// NewCatalog returns an empty, frozen catalog with no session
func NewCatalog() *Catalog {
	return &Catalog{
		entries: orderedmap.New[Address, DiscoveredDevice](),
		frozen:  true,
	}
}

// Reset clears all entries and opens the catalog for a new session
func (c *Catalog) Reset(session uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = orderedmap.New[Address, DiscoveredDevice]()
	c.session = session
	c.frozen = false
}

// Add appends d unless its address is already present or the catalog is frozen.
// The first-seen entry is kept; a later duplicate carries no new information.
func (c *Catalog) Add(d DiscoveredDevice) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return false
	}
	if _, exists := c.entries.Get(d.Address); exists {
		return false
	}
	c.entries.Set(d.Address, d)
	return true
}

// Freeze makes the catalog read-only until the next Reset
func (c *Catalog) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether the scan that fills the catalog has ended
func (c *Catalog) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Session returns the id of the scan that produced the entries
func (c *Catalog) Session() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// At returns a copy of the entry at position i
func (c *Catalog) At(i int) (DiscoveredDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.atLocked(i)
}

func (c *Catalog) atLocked(i int) (DiscoveredDevice, bool) {
	if i < 0 || i >= c.entries.Len() {
		return DiscoveredDevice{}, false
	}
	pos := 0
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pos == i {
			return pair.Value, true
		}
		pos++
	}
	return DiscoveredDevice{}, false
}

// Lookup finds an entry by address
func (c *Catalog) Lookup(addr Address) (DiscoveredDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Get(addr)
}

// Resolve returns the entry a handle points at. Handles from another session do not resolve.
func (c *Catalog) Resolve(h Handle) (DiscoveredDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if h.Session == uuid.Nil || h.Session != c.session {
		return DiscoveredDevice{}, false
	}
	return c.atLocked(h.Index)
}

// Handle returns the session-tagged handle for position i
func (c *Catalog) Handle(i int) (Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= c.entries.Len() {
		return Handle{}, false
	}
	return Handle{Session: c.session, Index: i}, true
}

// Devices returns a snapshot of all entries in discovery order
func (c *Catalog) Devices() []DiscoveredDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	devs := make([]DiscoveredDevice, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		devs = append(devs, pair.Value)
	}
	return devs
}

// Labels returns the display labels in discovery order
func (c *Catalog) Labels() []string {
	devs := c.Devices()
	labels := make([]string, len(devs))
	for i, d := range devs {
		labels[i] = d.Label()
	}
	return labels
}
