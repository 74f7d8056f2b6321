package usecase

import (
	"testing"

	"github.com/pollere/dlyloc/domain"
)

type fakeEmitter struct {
	results []Result
}

func (e *fakeEmitter) Emit(r Result) { e.results = append(e.results, r) }

func newTestOrchestrator() (*Orchestrator, *fakeEmitter) {
	e := &fakeEmitter{}
	return NewOrchestrator(DefaultConfig(), e), e
}

func rawTCP(src, dst string, ts, ecr uint32, flags domain.TCPFlags, capTm float64) RawPacket {
	return RawPacket{
		PI: domain.PacketInput{
			CapTm: capTm,
			Src:   src,
			Dst:   dst,
			TS:    ts,
			ECR:   ecr,
			Flags: flags,
			Sz:    100,
		},
		HasTCP: true,
		HasIP:  true,
		HasTS:  true,
	}
}

func TestProcessPacketCountsStructuralRejections(t *testing.T) {
	orch, e := newTestOrchestrator()

	orch.ProcessPacket(RawPacket{HasTCP: false})
	if orch.Counters.NotTCP != 1 {
		t.Fatalf("NotTCP = %d, want 1", orch.Counters.NotTCP)
	}

	orch.ProcessPacket(RawPacket{HasTCP: true, HasTS: false})
	if orch.Counters.NoTS != 1 {
		t.Fatalf("NoTS = %d, want 1", orch.Counters.NoTS)
	}

	orch.ProcessPacket(RawPacket{HasTCP: true, HasTS: true, HasIP: false})
	if orch.Counters.NotV4or6 != 1 {
		t.Fatalf("NotV4or6 = %d, want 1", orch.Counters.NotV4or6)
	}

	if orch.Counters.PktCnt != 3 {
		t.Fatalf("PktCnt = %d, want 3 (every packet is counted)", orch.Counters.PktCnt)
	}
	if len(e.results) != 0 {
		t.Fatalf("a structurally rejected packet produced %d results, want 0", len(e.results))
	}
	if orch.FlowCount() != 0 {
		t.Fatalf("a structurally rejected packet created a flow")
	}
}

func TestProcessPacketZeroTSDroppedSilently(t *testing.T) {
	orch, e := newTestOrchestrator()
	orch.ProcessPacket(rawTCP("a:1", "b:2", 0, 5, 0, 1.0))
	if orch.FlowCount() != 0 {
		t.Fatalf("a TS=0 packet created a flow")
	}
	if len(e.results) != 0 {
		t.Fatalf("a TS=0 packet produced a result")
	}
}

func TestProcessPacketZeroECRRequiresSYN(t *testing.T) {
	orch, _ := newTestOrchestrator()
	orch.ProcessPacket(rawTCP("a:1", "b:2", 10, 0, 0, 1.0))
	if orch.FlowCount() != 0 {
		t.Fatalf("a non-SYN packet with ECR=0 created a flow")
	}

	orch, _ = newTestOrchestrator()
	orch.ProcessPacket(rawTCP("a:1", "b:2", 10, 0, domain.FlagSYN, 1.0))
	if orch.FlowCount() != 1 {
		t.Fatalf("a SYN packet with ECR=0 did not create a flow")
	}
}

func TestProcessPacketUnidirectionalFlowCounted(t *testing.T) {
	orch, _ := newTestOrchestrator()
	orch.ProcessPacket(rawTCP("a:1", "b:2", 10, 0, domain.FlagSYN, 1.0))
	if orch.Counters.UniDir != 1 {
		t.Fatalf("UniDir = %d, want 1 for a flow with no reverse direction seen", orch.Counters.UniDir)
	}
}

func TestPassivePingMatchAndNoDoubleMatch(t *testing.T) {
	orch, e := newTestOrchestrator()

	// A->B establishes the forward flow; no reverse flow exists yet so no
	// passive-ping bookkeeping happens for it.
	orch.ProcessPacket(rawTCP("a:1", "b:2", 10, 0, domain.FlagSYN, 1.0))

	// B->A creates the reverse flow, pairing both directions, and records
	// its own TSval (20) as a future passive-ping target.
	orch.ProcessPacket(rawTCP("b:2", "a:1", 20, 10, 0, 1.100))

	// A->B echoes B's TSval (20) back as ECR: this is the passive-ping match.
	orch.ProcessPacket(rawTCP("a:1", "b:2", 30, 20, 0, 1.250))

	if len(e.results) != 1 {
		t.Fatalf("got %d results after the matching packet, want 1", len(e.results))
	}
	got := e.results[0]
	if got.RTT < 0 {
		t.Fatalf("RTT = %v, want a non-negative matched RTT", got.RTT)
	}
	wantRTT := 1.250 - 1.100
	if diff := got.RTT - wantRTT; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("RTT = %v, want %v", got.RTT, wantRTT)
	}
	if got.MinPP != got.RTT {
		t.Fatalf("MinPP = %v, want %v (first match is the running minimum)", got.MinPP, got.RTT)
	}

	// A second A->B packet reusing the same ECR must not match again: the
	// TSMatchTable entry was already consumed, so nothing is emitted (no dv
	// is computable yet either, with this few packets).
	orch.ProcessPacket(rawTCP("a:1", "b:2", 40, 20, 0, 1.300))
	if len(e.results) != 1 {
		t.Fatalf("got %d results after a repeated ECR, want still 1 (no double match)", len(e.results))
	}
}

func TestProcessPacketReusesExistingFlow(t *testing.T) {
	orch, _ := newTestOrchestrator()
	orch.ProcessPacket(rawTCP("a:1", "b:2", 10, 0, domain.FlagSYN, 1.0))
	orch.ProcessPacket(rawTCP("a:1", "b:2", 20, 0, 0, 1.1))
	if orch.FlowCount() != 1 {
		t.Fatalf("FlowCount() = %d, want 1 (second packet reuses the flow)", orch.FlowCount())
	}
}
