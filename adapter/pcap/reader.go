// Package pcap is the capture-and-parse collaborator the core delegates
// to: live/offline packet capture, BPF filter application, and extraction
// of the fields the core needs (TCP Timestamps option, addressing,
// flags, size) into a domain.PacketInput.
package pcap

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/pollere/dlyloc/domain"
	"github.com/pollere/dlyloc/usecase"
)

// SnapLen is the maximum number of bytes per packet to capture; the TCP
// Timestamps option lives well within a packet's headers so a full
// payload capture isn't needed.
const SnapLen = 144

// Source reads packets from a live interface or an offline capture file
// and turns each into a usecase.RawPacket.
type Source struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// OpenOffline opens filename for offline reading and applies filterExpr
// as a BPF filter.
func OpenOffline(filename, filterExpr string) (*Source, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	return newSource(handle, filterExpr)
}

// OpenLive opens iface for live capture in non-promiscuous mode, with a
// 250ms read timeout, and applies filterExpr as a BPF filter.
func OpenLive(iface, filterExpr string) (*Source, error) {
	handle, err := pcap.OpenLive(iface, SnapLen, false, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open interface %s: %w", iface, err)
	}
	return newSource(handle, filterExpr)
}

func newSource(handle *pcap.Handle, filterExpr string) (*Source, error) {
	if filterExpr != "" {
		if err := handle.SetBPFFilter(filterExpr); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set filter %q: %w", filterExpr, err)
		}
	}
	return &Source{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Close releases the underlying capture handle.
func (s *Source) Close() { s.handle.Close() }

// Next returns the next packet as a usecase.RawPacket and its absolute
// capture timestamp (integer seconds, fractional seconds), or ok=false at
// end of an offline file.
func (s *Source) Next() (raw usecase.RawPacket, epochSec int64, fracSec float64, ok bool) {
	pkt, err := s.source.NextPacket()
	if err != nil {
		return usecase.RawPacket{}, 0, 0, false
	}
	return parsePacket(pkt), epochSecOf(pkt), fracSecOf(pkt), true
}

func epochSecOf(pkt gopacket.Packet) int64 {
	return pkt.Metadata().CaptureInfo.Timestamp.Unix()
}

func fracSecOf(pkt gopacket.Packet) float64 {
	ns := pkt.Metadata().CaptureInfo.Timestamp.Nanosecond()
	return float64(ns) / 1e9
}

// tcpTimestampKind is the TCP option kind for the Timestamps option
// (RFC 7323), carrying TSval followed by TSecr as two big-endian uint32s.
const tcpTimestampKind = layers.TCPOptionKindTimestamps

func parsePacket(pkt gopacket.Packet) usecase.RawPacket {
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return usecase.RawPacket{}
	}
	tcp, _ := tcpLayer.(*layers.TCP)

	var srcIP, dstIP string
	hasIP := true
	if ip4 := pkt.Layer(layers.LayerTypeIPv4); ip4 != nil {
		l, _ := ip4.(*layers.IPv4)
		srcIP, dstIP = l.SrcIP.String(), l.DstIP.String()
	} else if ip6 := pkt.Layer(layers.LayerTypeIPv6); ip6 != nil {
		l, _ := ip6.(*layers.IPv6)
		srcIP, dstIP = l.SrcIP.String(), l.DstIP.String()
	} else {
		hasIP = false
	}

	ts, ecr, hasTS := tcpTimestamps(tcp)

	pi := domain.PacketInput{
		Src:   fmt.Sprintf("%s:%d", srcIP, uint16(tcp.SrcPort)),
		Dst:   fmt.Sprintf("%s:%d", dstIP, uint16(tcp.DstPort)),
		TS:    ts,
		ECR:   ecr,
		Flags: tcpFlagsOf(tcp),
		Sz:    len(pkt.Data()),
	}

	return usecase.RawPacket{
		PI:     pi,
		HasTCP: true,
		HasIP:  hasIP,
		HasTS:  hasTS,
	}
}

func tcpTimestamps(tcp *layers.TCP) (ts, ecr uint32, ok bool) {
	for _, opt := range tcp.Options {
		if opt.OptionType == tcpTimestampKind && len(opt.OptionData) == 8 {
			ts = be32(opt.OptionData[0:4])
			ecr = be32(opt.OptionData[4:8])
			return ts, ecr, true
		}
	}
	return 0, 0, false
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func tcpFlagsOf(tcp *layers.TCP) domain.TCPFlags {
	var f domain.TCPFlags
	if tcp.FIN {
		f |= domain.FlagFIN
	}
	if tcp.SYN {
		f |= domain.FlagSYN
	}
	if tcp.RST {
		f |= domain.FlagRST
	}
	if tcp.PSH {
		f |= domain.FlagPSH
	}
	if tcp.ACK {
		f |= domain.FlagACK
	}
	if tcp.URG {
		f |= domain.FlagURG
	}
	return f
}
