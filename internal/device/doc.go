// Package device holds the Bluetooth Classic data model shared by discovery
// and connection management.
//
// It provides:
//   - Address, the raw 6-byte hardware address, and its colon-hex codec
//   - DiscoveredDevice and the display label derived from it
//   - Catalog, the ordered and deduplicated table filled by a scan
//   - Radio, the platform discovery/connect primitives
//   - Error, the typed error returned by every core operation
package device
