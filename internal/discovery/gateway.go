package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// TXT record keys advertised by gateways
const (
	TxtTransport = "transport" // "tcp" or "ws"
	TxtPath      = "path"      // WebSocket path
	TxtNode      = "node"      // default mailbox node
	TxtVendor    = "vendor"    // vendor ID of the device behind the gateway
	TxtProduct   = "product"   // product code of the device behind the gateway
)

// Gateway represents a discovered device gateway on the network
type Gateway struct {
	// Instance is the advertised service instance name (e.g., "bench-el1004")
	Instance string

	// Hostname is the mDNS hostname (e.g., "ecatgw-01.local.")
	Hostname string

	// IP is the gateway address, IPv4 when available
	IP string

	// Port is the advertised service port
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the gateway was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the gateway
func (g *Gateway) String() string {
	return fmt.Sprintf("Gateway %s (%s) at %s", g.Instance, g.Hostname, g.URL())
}

// Transport returns the advertised transport, "tcp" when absent.
func (g *Gateway) Transport() string {
	if t := strings.ToLower(g.GetMetadata(TxtTransport)); t != "" {
		return t
	}
	return "tcp"
}

// URL returns the channel URL for the gateway
func (g *Gateway) URL() string {
	host := net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
	switch g.Transport() {
	case "ws", "wss":
		path := g.GetMetadata(TxtPath)
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return fmt.Sprintf("%s://%s%s", g.Transport(), host, path)
	default:
		return "tcp://" + host
	}
}

// Node returns the advertised mailbox node, 0 when absent or invalid.
func (g *Gateway) Node() uint8 {
	n, err := strconv.ParseUint(g.GetMetadata(TxtNode), 0, 8)
	if err != nil {
		return 0
	}
	return uint8(n)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}
