package domain

// wrapCount is the modulus of the 32-bit TCP timestamp value.
const wrapCount = int64(1) << 32

// TSWrap extends a stream of 32-bit TSval observations, in arrival order,
// into monotone 64-bit values that correctly account for 32-bit modular
// wrap.
//
// A packet arriving just after a wrap may be reordered by one relative to
// the last pre-wrap packet; indexing the offset table by the incoming
// value's high bit picks the correct epoch's offset for that case.
type TSWrap struct {
	offset [2]int64
	last   uint32
}

// Extend feeds the next raw TSval in arrival order and returns its
// extended 64-bit value.
func (w *TSWrap) Extend(ts uint32) int64 {
	if (w.last &^ ts)>>31 == 1 {
		// last's high bit was 1 and ts's is 0: a wrap just occurred.
		w.offset[1] = w.offset[0]
		w.offset[0] += wrapCount
	}
	w.last = ts
	return w.offset[ts>>31] + int64(ts)
}
