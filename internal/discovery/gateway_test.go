package discovery

import (
	"testing"
	"time"
)

func TestGateway_URL(t *testing.T) {
	tests := []struct {
		name string
		gw   Gateway
		want string
	}{
		{
			name: "tcp default",
			gw:   Gateway{IP: "192.168.1.50", Port: 34980},
			want: "tcp://192.168.1.50:34980",
		},
		{
			name: "websocket with path",
			gw:   Gateway{IP: "10.0.0.5", Port: 8080, Metadata: map[string]string{"transport": "ws", "path": "ecat"}},
			want: "ws://10.0.0.5:8080/ecat",
		},
		{
			name: "secure websocket",
			gw:   Gateway{IP: "10.0.0.5", Port: 443, Metadata: map[string]string{"transport": "WSS", "path": "/gw"}},
			want: "wss://10.0.0.5:443/gw",
		},
		{
			name: "ipv6",
			gw:   Gateway{IP: "fe80::1", Port: 34980},
			want: "tcp://[fe80::1]:34980",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gw.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGateway_Node(t *testing.T) {
	tests := []struct {
		value string
		want  uint8
	}{
		{"", 0},
		{"3", 3},
		{"0x10", 16},
		{"300", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		gw := Gateway{Metadata: map[string]string{TxtNode: tt.value}}
		if got := gw.Node(); got != tt.want {
			t.Errorf("Node() with %q = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestGateway_String(t *testing.T) {
	gw := Gateway{Instance: "bench", Hostname: "ecatgw.local.", IP: "10.0.0.5", Port: 34980}
	want := "Gateway bench (ecatgw.local.) at tcp://10.0.0.5:34980"
	if got := gw.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGateway_GetMetadata_NilMap(t *testing.T) {
	gw := &Gateway{}
	if got := gw.GetMetadata("transport"); got != "" {
		t.Errorf("GetMetadata() = %q, want empty", got)
	}
	if gw.Transport() != "tcp" {
		t.Errorf("Transport() = %q, want tcp", gw.Transport())
	}
}

func TestGateway_DiscoveredAt(t *testing.T) {
	now := time.Now()
	gw := &Gateway{DiscoveredAt: now}
	if !gw.DiscoveredAt.Equal(now) {
		t.Errorf("DiscoveredAt = %v, want %v", gw.DiscoveredAt, now)
	}
}
