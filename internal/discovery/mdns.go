package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/logging"
)

const (
	// ServiceType is the mDNS service type advertised by device gateways
	ServiceType = "_ecat-gw._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is assumed when an entry advertises no port
	DefaultPort = channel.DefaultPort
)

// Scanner handles mDNS gateway discovery
type Scanner struct {
	// Timeout is the maximum time to wait for gateway discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// browse runs one mDNS browse and passes every parsed gateway to found
// until ctx ends or found returns false.
func (s *Scanner) browse(ctx context.Context, found func(*Gateway) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			gw := parseServiceEntry(entry)
			if gw == nil {
				continue
			}
			logging.Debug("Discovered gateway", zap.String("instance", gw.Instance), zap.String("url", gw.URL()))
			if !found(gw) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends
	wg.Wait()
	return nil
}

// Scan discovers all gateways on the local network
func (s *Scanner) Scan(ctx context.Context) ([]*Gateway, error) {
	var gateways []*Gateway
	seen := make(map[string]bool)

	err := s.browse(ctx, func(gw *Gateway) bool {
		if !seen[gw.Instance] {
			seen[gw.Instance] = true
			gateways = append(gateways, gw)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return gateways, nil
}

// WaitForGateway waits for a gateway with the given instance name
func (s *Scanner) WaitForGateway(ctx context.Context, instance string) (*Gateway, error) {
	var match *Gateway
	err := s.browse(ctx, func(gw *Gateway) bool {
		if strings.EqualFold(gw.Instance, instance) {
			match = gw
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("gateway %s not found within timeout", instance)
	}
	return match, nil
}

// parseServiceEntry converts a zeroconf service entry to a Gateway.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Gateway{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Scan is a convenience function to scan for gateways with a custom timeout
func Scan(ctx context.Context, timeout time.Duration) ([]*Gateway, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan(ctx)
}
