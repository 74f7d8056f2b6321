// Package emit renders Orchestrator results to the two wire formats
// (machine-readable and human-readable) and handles output
// buffering/flushing.
package emit

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pollere/dlyloc/usecase"
)

// FlushInterval is the default capture-time interval, in seconds,
// between stdout flushes.
const FlushInterval = 1.0

// Writer renders usecase.Result values as lines of text, in either
// human-readable or machine-readable form, and flushes on a capture-time
// interval so offline-file runs stay deterministic.
type Writer struct {
	w          *bufio.Writer
	machine    bool
	originSec  int64
	flushEvery float64
	nextFlush  float64
}

// NewWriter returns a Writer over w. If machine is true, lines are
// rendered in the machine-readable format; originSec is the first
// packet's integer-seconds capture time, used to reconstruct absolute
// timestamps in machine mode.
func NewWriter(w io.Writer, machine bool, originSec int64) *Writer {
	return &Writer{
		w:          bufio.NewWriter(w),
		machine:    machine,
		originSec:  originSec,
		flushEvery: FlushInterval,
	}
}

// Emit implements usecase.Emitter.
func (wr *Writer) Emit(r usecase.Result) {
	if wr.machine {
		wr.emitMachine(r)
	} else {
		wr.emitHuman(r)
	}
	if r.CapTm >= wr.nextFlush {
		wr.w.Flush()
		wr.nextFlush = r.CapTm + wr.flushEvery
	}
}

// Close flushes any buffered output.
func (wr *Writer) Close() error { return wr.w.Flush() }

// SetOrigin sets the integer-seconds capture time of the first packet
// processed, once the orchestrator has seen it.
func (wr *Writer) SetOrigin(originSec int64) { wr.originSec = originSec }

func (wr *Writer) emitMachine(r usecase.Result) {
	abs := r.CapTm + float64(wr.originSec)
	sec := int64(abs)
	usec := int((r.CapTm - math.Floor(r.CapTm)) * 1e6)
	fmt.Fprintf(wr.w, "%d.%06d %s %s %.0f %.6f %.6f %.6f %s\n",
		sec, usec,
		fnum6(r.RTT), fnum6(r.MinPP), r.BytesSnt,
		r.DV[0], r.DV[1], r.DV[2],
		string(r.Flow))
}

// fnum6 renders rtt/minPP: -1 (not %.6f) when unavailable, since those
// two fields use a bare sentinel rather than a formatted negative number.
func fnum6(v float64) string {
	if v < 0 {
		return "-1"
	}
	return fmt.Sprintf("%.6f", v)
}

func (wr *Writer) emitHuman(r usecase.Result) {
	t := time.Unix(int64(r.CapTm)+wr.originSec, 0)
	clock := t.Format("15:04:05")
	rttStr, minPPStr := "-", "-"
	if r.RTT >= 0 {
		rttStr = FormatTimeDiff(r.RTT)
	}
	if r.MinPP >= 0 {
		minPPStr = FormatTimeDiff(r.MinPP)
	}
	fmt.Fprintf(wr.w, "%s %s %s", clock, rttStr, minPPStr)
	for _, dv := range r.DV {
		if dv > -1 {
			fmt.Fprintf(wr.w, " %s", FormatTimeDiff(dv))
		} else {
			fmt.Fprint(wr.w, " -")
		}
	}
	fmt.Fprintf(wr.w, " %s\n", string(r.Flow))
}

// FormatTimeDiff renders a duration in seconds with an SI time prefix
// (u/m/none) and 2, 1, or 0 fractional digits depending on magnitude.
func FormatTimeDiff(dt float64) string {
	prefix := ""
	switch {
	case dt < 1e-3:
		dt *= 1e6
		prefix = "u"
	case dt < 1:
		dt *= 1e3
		prefix = "m"
	}
	switch {
	case dt < 10:
		return fmt.Sprintf("%.2f%ss", dt, prefix)
	case dt < 100:
		return fmt.Sprintf("%.1f%ss", dt, prefix)
	default:
		return fmt.Sprintf(" %.0f%ss", dt, prefix)
	}
}
