// Package discovery finds device gateways on the local network over mDNS.
//
// Gateways advertise the "_ecat-gw._tcp" service type. TXT records describe
// how to reach the device behind them:
//
//	transport=ws path=/ecat node=0 vendor=0x0002 product=0x044C2C52
//
// A gateway without a transport record is assumed to speak raw TCP.
//
// # Usage Example
//
//	gateways, err := discovery.Scan(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, gw := range gateways {
//	    fmt.Printf("%s -> %s\n", gw.Instance, gw.URL())
//	}
//
// The simulator uses Advertise to register itself so that scans find it.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Gateways must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
