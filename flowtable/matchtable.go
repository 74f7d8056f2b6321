package flowtable

// DefaultTsvalMaxAge is the default age, in seconds, after which an
// unmatched TSMatchTable entry is dropped.
const DefaultTsvalMaxAge = 10.0

// TSMatchTable maps "<flowKey>+<tsval>" to the capture time a TSval was
// first seen on that flow, for passive-ping matching. The stored time's
// sign encodes whether the entry has been consumed: positive means
// unmatched, negative means already used as a passive-ping match (kept,
// not deleted, until it ages out, so a recycled TSval on a long-lived
// flow can't match an ECR from an earlier incarnation).
type TSMatchTable struct {
	entries map[string]float64
}

// NewTSMatchTable returns an empty TSMatchTable.
func NewTSMatchTable() *TSMatchTable {
	return &TSMatchTable{entries: make(map[string]float64)}
}

// Insert records capTm as the first-seen time for key, unless an entry
// already exists (first-seen semantics: never overwrite).
func (t *TSMatchTable) Insert(key string, capTm float64) {
	if _, exists := t.entries[key]; !exists {
		t.entries[key] = capTm
	}
}

// Match looks up key and, if found with a still-unmatched (positive)
// stored time, marks it consumed and returns (storedTime, true). Returns
// (0, false) if the key is absent or already consumed.
func (t *TSMatchTable) Match(key string) (float64, bool) {
	t0, exists := t.entries[key]
	if !exists || t0 <= 0 {
		return 0, false
	}
	t.entries[key] = -t0
	return t0, true
}

// AgeOut deletes every entry whose absolute stored time is more than
// maxAge seconds before now.
func (t *TSMatchTable) AgeOut(now, maxAge float64) {
	for key, t0 := range t.entries {
		stored := t0
		if stored < 0 {
			stored = -stored
		}
		if now-stored > maxAge {
			delete(t.entries, key)
		}
	}
}

// Len returns the number of entries currently tracked (matched or not).
func (t *TSMatchTable) Len() int { return len(t.entries) }
