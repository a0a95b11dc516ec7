package refmap

import (
	"fmt"

	"github.com/jiangshenghai57/glassbox/timeline"
)

// BuildFlags materializes F<id>, F<id>.Start, F<id>.End for every key
// period: 1 over the period's month range clipped to the timeline, with
// Start/End one-hot at the first/last in-range period. Both are all-zero
// when the key period does not overlap the timeline.
func BuildFlags(keyPeriods []KeyPeriod, tl timeline.Timeline) map[string][]float64 {
	out := make(map[string][]float64, len(keyPeriods)*3)
	p := tl.Periods()

	for _, kp := range keyPeriods {
		flag := make([]float64, p)
		start := make([]float64, p)
		end := make([]float64, p)

		startTotal := kp.StartYear*12 + kp.StartMonth
		endTotal := kp.EndYear*12 + kp.EndMonth

		firstIdx, lastIdx := -1, -1
		for i := 0; i < p; i++ {
			pt := tl.Year[i]*12 + tl.Month[i]
			if pt >= startTotal && pt <= endTotal {
				flag[i] = 1
				if firstIdx == -1 {
					firstIdx = i
				}
				lastIdx = i
			}
		}
		if firstIdx >= 0 {
			start[firstIdx] = 1
		}
		if lastIdx >= 0 {
			end[lastIdx] = 1
		}

		prefix := fmt.Sprintf("F%d", kp.ID)
		out[prefix] = flag
		out[prefix+".Start"] = start
		out[prefix+".End"] = end
	}

	return out
}
