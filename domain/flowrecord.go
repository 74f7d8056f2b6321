package domain

import "math"

// hullPoint is one point on a lower convex hull in (ts, tm) coordinates,
// ts along the "x" axis and tm (capture time) along the "y" axis.
type hullPoint struct {
	TM float64
	TS int64
}

// FlowRecord holds per-flow state: TSval wrap tracking, the moving-min +
// lower-hull clock inference for this direction, passive-ping bookkeeping,
// and pairing with the exact reverse flow.
type FlowRecord struct {
	Key FlowKey

	StartTm float64 // capture time of first packet on this flow
	StartTS int64   // extended TSval of first packet on this flow
	LastTm  float64 // capture time of most recent packet (idle eviction)

	twrap TSWrap // TSval wrap state
	ewrap TSWrap // ECR wrap state

	BytesSnt float64
	PktCnt   int

	MinPP float64 // smallest passive-ping RTT observed so far
	MinTS int64   // extended TSval (relative to StartTS) at that minimum
	MinTm float64 // capture time of that minimum

	RevFlow bool
	rfp     *FlowRecord // back-reference to the exact reverse flow

	mm     *MovingMin
	lhPts  []hullPoint // lower hull including colinear intermediates
	lhSegs []hullPoint // lower hull without colinear intermediates
	lstTS  struct {
		tm float64
		ts int64
	}

	ZeroTS int64
	ZeroTm float64
	SpTS   float64
	spSet  float64
	ClkSet bool
}

// NewFlowRecord creates flow state starting at the given capture time and
// extended TSval.
func NewFlowRecord(key FlowKey, startTm float64, startTS int64) *FlowRecord {
	fr := &FlowRecord{
		Key:     key,
		StartTm: startTm,
		StartTS: startTS,
		MinPP:   math.MaxFloat64,
		mm:      NewMovingMin(DefaultInterval, DefaultIntervalSpaces),
	}
	fr.mm.SetFirstInterval(0)
	return fr
}

// ExtendTS extends a raw TSval using this flow's forward TSWrap.
func (fr *FlowRecord) ExtendTS(ts uint32) int64 { return fr.twrap.Extend(ts) }

// ExtendECR extends a raw ECR using this flow's own ECR TSWrap (ewrap),
// which is kept separately from the TSval wrap state used by ExtendTS.
// ECR echoes the peer's TSval, yet its wrap is tracked here on this flow
// rather than taken from the peer's TSval stream, so it is an
// approximation; see DESIGN.md for why this is preserved rather than
// "fixed".
func (fr *FlowRecord) ExtendECR(ecr uint32) int64 { return fr.ewrap.Extend(ecr) }

// Pair cross-links fr and rev as exact reverse flows of each other.
func Pair(fr, rev *FlowRecord) {
	fr.RevFlow = true
	fr.rfp = rev
	rev.RevFlow = true
	rev.rfp = fr
}

// Unpair clears the pairing on fr's partner, if any. Called before a
// FlowRecord is evicted so its partner doesn't keep a dangling reference.
func (fr *FlowRecord) Unpair() {
	if fr.rfp != nil {
		fr.rfp.RevFlow = false
		fr.rfp.rfp = nil
	}
}

func cross(o, a, b hullPoint) float64 {
	return float64(a.TS-o.TS)*(b.TM-o.TM) - (a.TM-o.TM)*float64(b.TS-o.TS)
}

// computeTicks feeds one (capture time, extended TSval) sample into the
// moving-min + lower-hull clock inference for this flow's direction and
// returns whether a usable clock (spTS, zeroTS/zeroTm) is currently set.
func (fr *FlowRecord) computeTicks(tm float64, ts int64) bool {
	if fr.PktCnt > 0 && fr.lstTS.ts >= ts {
		// duplicate TSval: only the first occurrence advances the clock
		return fr.ClkSet
	}
	fr.lstTS.tm, fr.lstTS.ts = tm, ts

	tm -= fr.StartTm
	ts -= fr.StartTS

	// lhSegs tracks the hull without intermediate colinear points; lhPts
	// keeps them.
	fr.mm.AddSample(tm, ts)
	if !fr.mm.NewInterval(ts) {
		return fr.ClkSet
	}
	minTm, minTS := fr.mm.IntervalMin()
	newPt := hullPoint{TM: minTm, TS: minTS}

	for len(fr.lhPts) >= 2 && cross(fr.lhPts[len(fr.lhPts)-2], fr.lhPts[len(fr.lhPts)-1], newPt) < 0 {
		fr.lhPts = fr.lhPts[:len(fr.lhPts)-1]
	}
	fr.lhPts = append(fr.lhPts, newPt)

	for len(fr.lhSegs) >= 2 && cross(fr.lhSegs[len(fr.lhSegs)-2], fr.lhSegs[len(fr.lhSegs)-1], newPt) <= 0 {
		fr.lhSegs = fr.lhSegs[:len(fr.lhSegs)-1]
	}
	fr.lhSegs = append(fr.lhSegs, newPt)
	lhSegs := fr.lhSegs

	if ts < 3*fr.mm.Interval || len(fr.lhPts) < 2 || fr.PktCnt < 20 {
		return fr.ClkSet // wait for enough data before inferring a clock
	}

	// find the longest segment of the no-colinear hull; ties keep the
	// latest (rightmost) candidate
	var longest int64
	li := 0
	for i := 1; i < len(lhSegs); i++ {
		if lhSegs[i].TS-lhSegs[i-1].TS >= longest {
			longest = lhSegs[i].TS - lhSegs[i-1].TS
			li = i
		}
	}

	if lhSegs[li].TS+fr.StartTS == fr.ZeroTS {
		// same segment chosen as before: only the zero point may move
		// forward to a later passive-ping minimum
		if fr.MinTS > fr.ZeroTS {
			fr.ZeroTS = fr.MinTS
			fr.ZeroTm = fr.MinTm
		}
		return fr.ClkSet
	}

	m := (lhSegs[li].TM - lhSegs[li-1].TM) / float64(lhSegs[li].TS-lhSegs[li-1].TS)
	spt := math.Round(m*1000) / 1000
	if spt == 0 {
		fr.ClkSet = false
		return fr.ClkSet
	}
	skew := math.Abs(m - spt)
	if skew/spt > 0.005 {
		fr.ClkSet = false
		return fr.ClkSet
	}

	fr.SpTS = spt
	fr.ZeroTS = fr.StartTS + lhSegs[li].TS
	fr.ZeroTm = fr.StartTm + lhSegs[li].TM
	fr.ClkSet = true
	fr.spSet = tm
	return fr.ClkSet
}

// ComputeDV fills pi.DV[0..2] with the delay-variation values this flow
// (and its paired reverse flow, if any) can currently compute, leaving the
// sentinel -1 where a value isn't computable. It returns true iff at
// least one DV value was set.
//
// dv[1] (sender->CP) needs only this flow's clock. dv[2] (dst->sender->CP)
// and dv[0] (dst->sender) additionally need the reverse flow's clock.
func (fr *FlowRecord) ComputeDV(pi *PacketInput) bool {
	pi.DV[0], pi.DV[1], pi.DV[2] = -1, -1, -1

	var srcTm float64
	setDV := false

	if fr.computeTicks(pi.CapTm, pi.ExtTS) {
		srcTm = float64(pi.ExtTS-fr.ZeroTS)*fr.SpTS + fr.ZeroTm
		if srcTm > pi.CapTm {
			srcTm = pi.CapTm
		}
		pi.DV[1] = pi.CapTm - srcTm
		setDV = true
	}

	if !fr.RevFlow || fr.rfp == nil || !fr.rfp.ClkSet {
		return setDV
	}

	dstTm := float64(pi.ExtECR-fr.rfp.ZeroTS)*fr.rfp.SpTS + fr.rfp.ZeroTm
	if dstTm > pi.CapTm {
		return setDV
	}
	pi.DV[2] = pi.CapTm - dstTm
	setDV = true

	if fr.ClkSet {
		pi.DV[0] = srcTm - dstTm
	}
	return setDV
}

// UpdatePassivePing records a passive-ping RTT observation if it improves
// on the flow's current minimum.
func (fr *FlowRecord) UpdatePassivePing(rtt, capTm float64, extTS int64) {
	if rtt < fr.MinPP {
		fr.MinPP = rtt
		fr.MinTS = extTS - fr.StartTS
		fr.MinTm = capTm
	}
}
