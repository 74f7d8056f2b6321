package pcap

import "net"

// LocalAddrOf returns the first IPv4 address configured on the named
// interface, or "" if none is found. Used to suppress passive-ping
// insertion for flows terminated on the capture host itself (-l).
func LocalAddrOf(ifname string) string {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
