package refmap

import (
	"fmt"
	"math"

	"github.com/jiangshenghai57/glassbox/timeline"
)

// BuildIndexation materializes I<id> compound-growth factor arrays. The
// entry named "None", or with id 1, is always the identity (all-ones) array.
func BuildIndexation(indices []Index, tl timeline.Timeline) map[string][]float64 {
	out := make(map[string][]float64, len(indices))
	p := tl.Periods()

	for _, idx := range indices {
		ref := fmt.Sprintf("I%d", idx.ID)

		if idx.Name == "None" || idx.ID == 1 {
			ones := make([]float64, p)
			for i := range ones {
				ones[i] = 1
			}
			out[ref] = ones
			continue
		}

		arr := make([]float64, p)
		startTotal := idx.IndexationStartYear*12 + idx.IndexationStartMonth
		monthly := idx.IndexationPeriod == "monthly"

		for i := 0; i < p; i++ {
			y, m := tl.Year[i], tl.Month[i]
			pt := y*12 + m
			if pt < startTotal {
				arr[i] = 1.0
				continue
			}
			if monthly {
				monthsElapsed := pt - startTotal
				rate := (idx.IndexationRate / 100) / 12
				arr[i] = math.Pow(1+rate, float64(monthsElapsed))
			} else {
				yearsElapsed := y - idx.IndexationStartYear
				rate := idx.IndexationRate / 100
				arr[i] = math.Pow(1+rate, float64(yearsElapsed))
			}
		}
		out[ref] = arr
	}

	return out
}
