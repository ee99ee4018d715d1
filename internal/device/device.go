package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DefaultUnknownName is shown for devices that advertise no name
const DefaultUnknownName = "Unknown"

// DiscoveredDevice is one entry of a scan result.
// The display label is always derived from Name and Address and never stored.
type DiscoveredDevice struct {
	Name    string
	Address Address
}

// NewDiscoveredDevice builds a device record, substituting placeholder for an empty name.
func NewDiscoveredDevice(name string, addr Address, placeholder string) DiscoveredDevice {
	if name == "" {
		name = placeholder
	}
	if name == "" {
		name = DefaultUnknownName
	}
	return DiscoveredDevice{Name: name, Address: addr}
}

// Label returns the human-facing handle "<name> [<address>]"
func (d DiscoveredDevice) Label() string {
	return Label(d.Name, d.Address)
}

// MarshalJSON emits name, canonical address and label
func (d DiscoveredDevice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Label   string `json:"label"`
	}{
		Name:    d.Name,
		Address: d.Address.String(),
		Label:   d.Label(),
	})
}

// Handle identifies a catalog entry within one scan session.
// A handle from an earlier session never resolves after a new scan.
type Handle struct {
	Session uuid.UUID
	Index   int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s/%d", h.Session, h.Index)
}

// DiscoverHandler receives each device reported by the platform.
// name is empty when the remote device advertised none.
type DiscoverHandler func(name string, addr Address)

// Radio is the platform Bluetooth Classic primitive set.
// Discover and Connect block until the platform reports completion.
type Radio interface {
	// Open prepares the adapter. It is idempotent; callers open before every
	// discovery or connect. Failures should match ErrRadioUnavailable.
	Open(ctx context.Context) error

	// Discover runs an inquiry until ctx is done and returns the number of
	// unique devices the platform saw.
	Discover(ctx context.Context, handler DiscoverHandler) (int, error)

	// Connect opens a serial link to addr. The error text is the failure reason.
	Connect(ctx context.Context, addr Address) error

	// Disconnect closes the link to addr.
	Disconnect(ctx context.Context, addr Address) error

	Close() error
}

// LinkWatcher is implemented by radios that can report a link dropping
// without a Disconnect call.
type LinkWatcher interface {
	WatchLinks(onDown func(addr Address))
}

// CatalogReader is the read-only view of a Catalog handed to consumers
type CatalogReader interface {
	Len() int
	At(i int) (DiscoveredDevice, bool)
	Lookup(addr Address) (DiscoveredDevice, bool)
	Resolve(h Handle) (DiscoveredDevice, bool)
	Handle(i int) (Handle, bool)
	Devices() []DiscoveredDevice
	Labels() []string
	Session() uuid.UUID
	Frozen() bool
}

var _ CatalogReader = (*Catalog)(nil)
