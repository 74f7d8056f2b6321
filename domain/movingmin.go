package domain

// DefaultInterval and DefaultIntervalSpaces are the moving-min window
// parameters used by ClockInference unless overridden.
const (
	DefaultInterval       = 100
	DefaultIntervalSpaces = 5.0
)

// minSample is one (value, t) observation tracked by MovingMin. In
// ClockInference's use, value is capture time and t is a flow-relative
// extended TSval.
type minSample struct {
	value float64
	t     int64
}

// MovingMin tracks the set of candidates that could become the minimum
// within any window of length Interval ending at or after the most recent
// sample, quantized to subintervals of width Sub to bound memory use.
type MovingMin struct {
	Interval int64
	Sub      int64

	minList []minSample
	nxtIntr int64
}

// NewMovingMin returns a MovingMin with the given window and subinterval
// count (interval / intervalSpaces is the minimum spacing between stored
// candidates).
func NewMovingMin(interval int64, intervalSpaces float64) *MovingMin {
	return &MovingMin{
		Interval: interval,
		Sub:      int64(float64(interval) / intervalSpaces),
	}
}

// AddSample adds the next (value, t) observation in non-decreasing-t
// order.
func (m *MovingMin) AddSample(v float64, t int64) {
	if len(m.minList) == 0 || v <= m.minList[0].value || t > m.minList[len(m.minList)-1].t+m.Interval {
		m.minList = m.minList[:0]
		m.minList = append(m.minList, minSample{v, t})
		return
	}

	// drop any prefix that has expired from the window
	first := 0
	for i := range m.minList {
		if m.minList[i].t+m.Interval >= t {
			first = i
			break
		}
	}
	if first != 0 {
		m.minList = m.minList[first:]
	}

	if v > m.minList[len(m.minList)-1].value {
		if m.minList[len(m.minList)-1].t+m.Sub <= t {
			m.minList = append(m.minList, minSample{v, t})
		}
		return
	}

	for i := range m.minList {
		if v <= m.minList[i].value {
			m.minList = m.minList[:i]
			m.minList = append(m.minList, minSample{v, t})
			return
		}
	}
	// shouldn't get here: v should be <= the last element's value
}

// NewInterval reports whether t has crossed an interval boundary since
// the last call, advancing the next-boundary marker by as many multiples
// of Interval as needed.
func (m *MovingMin) NewInterval(t int64) bool {
	if t < m.nxtIntr {
		return false
	}
	for m.nxtIntr <= t {
		m.nxtIntr += m.Interval
	}
	return true
}

// SetFirstInterval sets the next interval boundary relative to t (0 by
// default, since ClockInference feeds flow-relative values that already
// start at 0).
func (m *MovingMin) SetFirstInterval(t int64) {
	m.nxtIntr = t + m.Interval
}

// IntervalMin returns the current window minimum as (capture time, t).
func (m *MovingMin) IntervalMin() (value float64, t int64) {
	return m.minList[0].value, m.minList[0].t
}
