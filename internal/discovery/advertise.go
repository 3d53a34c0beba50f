package discovery

import (
	"fmt"
	"sort"

	"github.com/grandcat/zeroconf"
)

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a gateway instance on port with the given TXT
// metadata. Call Shutdown to withdraw it.
func Advertise(instance string, port int, metadata map[string]string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, TXTRecords(metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// TXTRecords renders metadata as sorted "key=value" records.
func TXTRecords(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txt := make([]string, 0, len(keys))
	for _, k := range keys {
		if metadata[k] == "" {
			txt = append(txt, k)
		} else {
			txt = append(txt, k+"="+metadata[k])
		}
	}
	return txt
}
