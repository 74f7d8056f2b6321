package flowtable

import (
	"testing"

	"github.com/pollere/dlyloc/domain"
)

func TestFlowTableInsertAndLookup(t *testing.T) {
	ft := NewFlowTable(10)
	key := domain.NewFlowKey("a:1", "b:2")

	if _, ok := ft.Lookup(key); ok {
		t.Fatalf("Lookup found a flow before Insert")
	}
	fr, ok := ft.Insert(key, 0, 0)
	if !ok || fr == nil {
		t.Fatalf("Insert failed on an empty table")
	}
	if ft.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ft.Len())
	}
	got, ok := ft.Lookup(key)
	if !ok || got != fr {
		t.Fatalf("Lookup did not return the inserted record")
	}
}

func TestFlowTablePairsReverseFlow(t *testing.T) {
	ft := NewFlowTable(10)
	fwdKey := domain.NewFlowKey("a:1", "b:2")
	revKey := domain.NewFlowKey("b:2", "a:1")

	fwd, _ := ft.Insert(fwdKey, 0, 0)
	if fwd.RevFlow {
		t.Fatalf("a lone forward flow reports RevFlow true")
	}

	rev, _ := ft.Insert(revKey, 1, 100)
	if !fwd.RevFlow || !rev.RevFlow {
		t.Fatalf("inserting the reverse flow did not pair both records")
	}
}

func TestFlowTableAdmissionCap(t *testing.T) {
	ft := NewFlowTable(1)
	if _, ok := ft.Insert(domain.NewFlowKey("a:1", "b:2"), 0, 0); !ok {
		t.Fatalf("first insert into a 1-flow table was refused")
	}
	if _, ok := ft.Insert(domain.NewFlowKey("c:3", "d:4"), 0, 0); ok {
		t.Fatalf("insert beyond the admission cap was accepted")
	}
	if ft.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after a refused insert", ft.Len())
	}
}

func TestFlowTableAgeOutEvictsIdleAndUnpairs(t *testing.T) {
	ft := NewFlowTable(10)
	fwdKey := domain.NewFlowKey("a:1", "b:2")
	revKey := domain.NewFlowKey("b:2", "a:1")
	fwd, _ := ft.Insert(fwdKey, 0, 0)
	rev, _ := ft.Insert(revKey, 0, 0)
	fwd.LastTm = 0
	rev.LastTm = 100

	ft.AgeOut(400, 300) // fwd idle 400s > 300s max; rev idle 300s, not > 300

	if _, ok := ft.Lookup(fwdKey); ok {
		t.Fatalf("idle flow was not evicted")
	}
	if _, ok := ft.Lookup(revKey); !ok {
		t.Fatalf("non-idle flow was evicted")
	}
	if rev.RevFlow {
		t.Fatalf("surviving partner still reports RevFlow after its pair was evicted")
	}
}
