package config

import (
	"fmt"
	"sort"
	"time"
)

// CurrentVersion is the registry file format version
const CurrentVersion = 1

// Registry represents the entire user configuration file.
// It stores known gateways and application preferences.
type Registry struct {
	Version     int                 `yaml:"version"`
	Gateways    map[string]*Gateway `yaml:"gateways,omitempty"` // Keyed by user-chosen name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Gateway is a saved connection to a device gateway.
type Gateway struct {
	URL      string    `yaml:"url"`                 // Channel URL (tcp://, ws://, serial://)
	Node     uint8     `yaml:"node,omitempty"`      // Mailbox node id
	Profile  string    `yaml:"profile,omitempty"`   // Default ESI file for this gateway
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time

	// Identity last read from the device behind this gateway
	VendorID    uint16 `yaml:"vendor_id,omitempty"`
	ProductCode uint32 `yaml:"product_code,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	TimeoutSeconds  int    `yaml:"timeout"`                 // Channel exchange timeout
	DefaultNode     uint8  `yaml:"default_node"`            // Node id when a gateway has none
	LogLevel        string `yaml:"log_level,omitempty"`     // debug, info, warn, error
	DiscoverTimeout int    `yaml:"discover_timeout"`        // mDNS discovery timeout in seconds
	ReportFormat    string `yaml:"report_format,omitempty"` // json, yaml or cbor
}

// DefaultPreferences returns the preferences used when none are saved.
func DefaultPreferences() *Preferences {
	return &Preferences{
		TimeoutSeconds:  5,
		DefaultNode:     0,
		DiscoverTimeout: 10,
		ReportFormat:    "json",
	}
}

// Timeout returns the exchange timeout as a duration.
func (p *Preferences) Timeout() time.Duration {
	if p == nil || p.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Validate checks preference values are usable.
func (p *Preferences) Validate() error {
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must not be negative (got %d)", p.TimeoutSeconds)
	}
	if p.DiscoverTimeout < 0 {
		return fmt.Errorf("discover_timeout must not be negative (got %d)", p.DiscoverTimeout)
	}
	switch p.ReportFormat {
	case "", "json", "yaml", "cbor":
	default:
		return fmt.Errorf("report_format must be json, yaml or cbor (got %q)", p.ReportFormat)
	}
	return nil
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Gateways:    make(map[string]*Gateway),
		Preferences: DefaultPreferences(),
	}
}

// GetGateway retrieves a gateway by name.
// Returns nil if the gateway doesn't exist in the registry.
func (r *Registry) GetGateway(name string) *Gateway {
	return r.Gateways[name]
}

// AddGateway stores or replaces a named gateway.
func (r *Registry) AddGateway(name, url string, node uint8) (*Gateway, error) {
	if name == "" {
		return nil, fmt.Errorf("gateway name must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("gateway %q: url must not be empty", name)
	}
	if r.Gateways == nil {
		r.Gateways = make(map[string]*Gateway)
	}

	gw := &Gateway{URL: url, Node: node}
	if old, ok := r.Gateways[name]; ok {
		gw.Profile = old.Profile
		gw.LastSeen = old.LastSeen
	}
	r.Gateways[name] = gw
	return gw, nil
}

// RemoveGateway deletes a gateway. It reports whether one was removed.
func (r *Registry) RemoveGateway(name string) bool {
	if _, ok := r.Gateways[name]; !ok {
		return false
	}
	delete(r.Gateways, name)
	return true
}

// GatewayNames returns the saved gateway names in sorted order.
func (r *Registry) GatewayNames() []string {
	names := make([]string, 0, len(r.Gateways))
	for name := range r.Gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateGatewaySeen records a successful connection and the identity read.
func (r *Registry) UpdateGatewaySeen(name string, vendorID uint16, productCode uint32) {
	gw := r.Gateways[name]
	if gw == nil {
		return
	}
	gw.LastSeen = time.Now()
	gw.VendorID = vendorID
	gw.ProductCode = productCode
}

// ResolveDevice maps a --device argument onto a channel URL and node.
// A saved gateway name resolves to its URL; anything else is returned as is
// with the default node.
func (r *Registry) ResolveDevice(arg string) (url string, node uint8) {
	node = r.Prefs().DefaultNode
	if gw := r.Gateways[arg]; gw != nil {
		if gw.Node != 0 {
			node = gw.Node
		}
		return gw.URL, node
	}
	return arg, node
}

// Prefs returns the preferences, never nil.
func (r *Registry) Prefs() *Preferences {
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	return r.Preferences
}
