// Package summary prints the periodic packet/flow counter report to
// stderr.
package summary

import (
	"fmt"
	"log"

	"github.com/pollere/dlyloc/usecase"
)

// Reporter prints counter summaries to the standard logger (stderr).
type Reporter struct {
	FlowCount func() int
}

// Print writes one summary line for the given counters.
func (r Reporter) Print(c usecase.Counters) {
	var extra string
	extra += printnz(c.NoTS, " no TS opt,")
	extra += printnz(c.UniDir, " uni-directional,")
	extra += printnz(c.NotTCP, " not TCP,")
	extra += printnz(c.NotV4or6, " not v4 or v6,")
	log.Printf("%d flows, %d packets,%s", r.FlowCount(), c.PktCnt, extra)
}

func printnz(v int, suffix string) string {
	if v > 0 {
		return fmt.Sprintf(" %d%s", v, suffix)
	}
	return ""
}
