package schedule

import (
	"fmt"

	"github.com/armadaproject/energysched/internal/common/util"
)

// String renders the schedule in the dump format: one block per segment listing its members, followed by the
// totals.
func (s *Schedule) String() string {
	w := util.NewTabbedStringBuilder(2)
	for i, segment := range s.segments {
		w.Writef("segment %d [%.6f, %.6f) energy=%.6f\n", i, segment.Start(), segment.End(), segment.Energy())
		if segment.Len() == 0 {
			continue
		}
		w.Row("    request", "app", "mapping", "startCratio", "endCratio", "energy")
		for _, jsm := range segment.Members() {
			w.Row(
				"    "+jsm.Request.String(),
				jsm.Request.App,
				jsm.Mapping.Id,
				fmt.Sprintf("%.6f", jsm.StartCratio),
				fmt.Sprintf("%.6f", jsm.EndCratio),
				fmt.Sprintf("%.6f", jsm.Energy()),
			)
		}
		w.Flush()
	}
	w.Writef("total energy: %.6f end time: %.6f\n", s.Energy(), s.End())
	return w.String()
}
