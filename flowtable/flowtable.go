// Package flowtable holds the two capture-point tables that outlive a
// single packet: the per-flow FlowTable and the passive-ping TSMatchTable.
package flowtable

import "github.com/pollere/dlyloc/domain"

// DefaultMaxFlows is the default admission cap on live flows.
const DefaultMaxFlows = 10000

// FlowTable maps flow keys to FlowRecords, pairs each flow with its exact
// reverse, enforces an admission cap, and ages out idle flows.
type FlowTable struct {
	MaxFlows int

	flows map[domain.FlowKey]*domain.FlowRecord
}

// NewFlowTable returns an empty FlowTable with the given admission cap.
func NewFlowTable(maxFlows int) *FlowTable {
	return &FlowTable{
		MaxFlows: maxFlows,
		flows:    make(map[domain.FlowKey]*domain.FlowRecord),
	}
}

// Len returns the number of live flows.
func (t *FlowTable) Len() int { return len(t.flows) }

// Lookup returns the FlowRecord for key, if any.
func (t *FlowTable) Lookup(key domain.FlowKey) (*domain.FlowRecord, bool) {
	fr, ok := t.flows[key]
	return fr, ok
}

// Insert creates and returns a new FlowRecord for key, started at
// (startTm, startTS). If key's exact reverse flow already exists, both
// records are paired. Returns ok=false (and no record) if the table is
// already at its admission cap; the caller should treat the packet as
// silently dropped for accounting purposes.
func (t *FlowTable) Insert(key domain.FlowKey, startTm float64, startTS int64) (fr *domain.FlowRecord, ok bool) {
	if len(t.flows) >= t.MaxFlows {
		return nil, false
	}
	fr = domain.NewFlowRecord(key, startTm, startTS)
	t.flows[key] = fr
	if rev, exists := t.flows[key.Reverse()]; exists {
		domain.Pair(fr, rev)
	}
	return fr, true
}

// AgeOut evicts every flow whose last packet was seen more than
// flowMaxIdle seconds before now, clearing the partner's pairing first.
func (t *FlowTable) AgeOut(now, flowMaxIdle float64) {
	for key, fr := range t.flows {
		if now-fr.LastTm > flowMaxIdle {
			fr.Unpair()
			delete(t.flows, key)
		}
	}
}
