// Package usecase drives the per-packet dispatch that ties the capture
// adapter, the domain delay-estimation engine and the output adapter
// together.
package usecase

import (
	"log"

	"github.com/pollere/dlyloc/domain"
	"github.com/pollere/dlyloc/flowtable"
)

// Config holds the tunable parameters that affect the core.
type Config struct {
	TsvalMaxAge float64 // TSMatchTable entry age limit, seconds
	FlowMaxIdle float64 // FlowRecord idle-eviction threshold, seconds
	MaxFlows    int     // FlowTable admission cap
	FiltLocal   bool    // suppress TSMatchTable insertion for locally-terminated flows
	LocalIP     string  // local interface IP, used only when FiltLocal is set
}

// DefaultConfig returns a Config populated with the default tunables.
func DefaultConfig() Config {
	return Config{
		TsvalMaxAge: flowtable.DefaultTsvalMaxAge,
		FlowMaxIdle: 300,
		MaxFlows:    flowtable.DefaultMaxFlows,
		FiltLocal:   true,
	}
}

// Result is one emitted measurement: a passive-ping match, a delay
// variation sample, or both.
type Result struct {
	CapTm    float64
	RTT      float64 // -1 if no passive-ping match on this packet
	MinPP    float64 // flow's running minimum RTT; -1 unless this packet produced a match
	BytesSnt float64
	DV       [3]float64
	Flow     domain.FlowKey
}

// Emitter is the output adapter's interface: given a Result, render and
// write one line.
type Emitter interface {
	Emit(r Result)
}

// Counters tracks the per-category packet counts the spec's summary
// collaborator reports.
type Counters struct {
	PktCnt   int
	NotTCP   int
	NoTS     int
	NotV4or6 int
	UniDir   int
}

// Orchestrator combines the FlowTable, TSMatchTable and ClockInference
// (via FlowRecord) to dispatch each captured packet: lookup/insert its
// flow, extend its timestamps, compute delay variation, perform
// passive-ping matching, and emit a result when one is available.
type Orchestrator struct {
	cfg      Config
	flows    *flowtable.FlowTable
	matches  *flowtable.TSMatchTable
	emit     Emitter
	Counters Counters

	haveOrigin bool
	originSec  int64 // first packet's integer-seconds capture time
}

// NewOrchestrator returns an Orchestrator wired to emit results via e.
func NewOrchestrator(cfg Config, e Emitter) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		flows:   flowtable.NewFlowTable(cfg.MaxFlows),
		matches: flowtable.NewTSMatchTable(),
		emit:    e,
	}
}

// NormalizeCaptureTime rebases an absolute (epochSec, fracSec) capture
// timestamp against the first packet's integer-seconds boundary, to
// preserve microsecond precision once folded into a float64. It must be
// called once per packet, in capture order, before ProcessPacket.
func (o *Orchestrator) NormalizeCaptureTime(epochSec int64, fracSec float64) float64 {
	if !o.haveOrigin {
		o.haveOrigin = true
		o.originSec = epochSec
	}
	return float64(epochSec-o.originSec) + fracSec
}

// OriginSeconds returns the integer-seconds capture time of the first
// packet processed, or 0 if none has been processed yet. Used by the
// machine-readable emitter to reconstruct absolute timestamps.
func (o *Orchestrator) OriginSeconds() int64 { return o.originSec }

// FlowCount returns the number of live flows in the FlowTable.
func (o *Orchestrator) FlowCount() int { return o.flows.Len() }

// RawPacket is what the capture adapter hands the orchestrator for every
// packet it reads, before any TCP/timestamp/IP-version parsing is known to
// have succeeded. PI is only valid when HasTCP, HasIP and HasTS are all
// true.
type RawPacket struct {
	PI     domain.PacketInput
	HasTCP bool
	HasIP  bool
	HasTS  bool
}

// ProcessPacket applies the structural accept/reject rules (TCP header,
// timestamp option, recognized IP version, non-zero TS, ECR zero only
// tolerated on a SYN), counting every rejected category, then dispatches
// accepted packets in capture order.
func (o *Orchestrator) ProcessPacket(raw RawPacket) {
	o.Counters.PktCnt++
	if !raw.HasTCP {
		o.Counters.NotTCP++
		return
	}
	if !raw.HasTS {
		o.Counters.NoTS++
		return
	}
	if !raw.HasIP {
		o.Counters.NotV4or6++
		return
	}
	pi := raw.PI
	if pi.TS == 0 || (pi.ECR == 0 && pi.Flags != domain.FlagSYN) {
		return
	}
	o.dispatch(&pi)
}

// dispatch processes one accepted packet in capture order: looks up or
// creates its flow, extends its timestamps, computes delay variation,
// performs passive-ping matching, and emits a result if one is available.
func (o *Orchestrator) dispatch(pi *domain.PacketInput) {
	key := domain.NewFlowKey(pi.Src, pi.Dst)
	fr, exists := o.flows.Lookup(key)
	var extTS int64
	if !exists {
		var ok bool
		fr, ok = o.flows.Insert(key, pi.CapTm, 0)
		if !ok {
			return // admission refusal: flow table is full
		}
		if check, present := o.flows.Lookup(key); !present || check != fr {
			ReportInconsistency("flow %q missing after insert", string(key))
			return
		}
		extTS = fr.ExtendTS(pi.TS)
		fr.StartTS = extTS
	} else {
		extTS = fr.ExtendTS(pi.TS)
	}

	pi.ExtTS = extTS
	pi.ExtECR = fr.ExtendECR(pi.ECR)
	fr.LastTm = pi.CapTm
	fr.BytesSnt += float64(pi.Sz)
	fr.PktCnt++

	dvs := fr.ComputeDV(pi)

	var rtt float64 = -1
	matched := false
	if fr.RevFlow {
		revKey := key.Reverse()
		if t0, ok := o.matches.Match(domain.MatchKey(revKey, pi.ECR)); ok {
			rtt = pi.CapTm - t0
			matched = true
			fr.UpdatePassivePing(rtt, pi.CapTm, pi.ExtTS)
		}
		if !o.cfg.FiltLocal || o.localIPOf(pi.Dst) != o.cfg.LocalIP {
			o.matches.Insert(domain.MatchKey(key, pi.TS), pi.CapTm)
		}
	} else {
		o.Counters.UniDir++
	}

	if !dvs && !matched {
		return
	}

	// minPP is only reported on the packet that actually produced a
	// passive-ping match; otherwise it's printed as unavailable even if
	// this flow has a running minimum from an earlier match.
	minPP := -1.0
	if matched {
		minPP = fr.MinPP
	}
	o.emit.Emit(Result{
		CapTm:    pi.CapTm,
		RTT:      rtt,
		MinPP:    minPP,
		BytesSnt: fr.BytesSnt,
		DV:       pi.DV,
		Flow:     key,
	})
}

// localIPOf extracts the IP portion of a "host:port" string, used to
// compare against the configured local interface IP for -l suppression.
func (o *Orchestrator) localIPOf(hostport string) string {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i]
		}
	}
	return hostport
}

// AgeOut runs the TSMatchTable and FlowTable aging passes. The caller
// should invoke this every TsvalMaxAge of capture time.
func (o *Orchestrator) AgeOut(now float64) {
	o.matches.AgeOut(now, o.cfg.TsvalMaxAge)
	o.flows.AgeOut(now, o.cfg.FlowMaxIdle)
}

// ReportInconsistency logs an unexpected internal inconsistency (e.g. a
// flow present by count but missing on lookup) to stderr; the caller then
// skips the packet.
func ReportInconsistency(format string, args ...any) {
	log.Printf("dlyloc: internal inconsistency: "+format, args...)
}
