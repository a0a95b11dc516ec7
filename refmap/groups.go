package refmap

import (
	"fmt"

	"github.com/jiangshenghai57/glassbox/timeline"
)

var prefixByMode = map[string]string{
	"timing":   "T",
	"series":   "S",
	"constant": "C",
	"lookup":   "L",
	"values":   "V",
}

type yearMonth struct {
	year, month int
}

// normalizeMode determines the (mode, prefix) pair for a group, mirroring
// the JS/Python engine's groupType/entryMode fallthrough exactly.
func normalizeMode(g InputGroup) (mode, prefix string) {
	switch g.GroupType {
	case "timing":
		mode = "timing"
	case "constant":
		mode = "constant"
	default:
		gm := g.EntryMode
		if gm == "" {
			gm = "values"
		}
		if gm == "lookup" || gm == "lookup2" {
			mode = "lookup"
		} else {
			mode = gm
		}
	}
	if p, ok := prefixByMode[mode]; ok {
		prefix = p
	} else {
		prefix = "V"
	}
	return mode, prefix
}

// groupPeriods enumerates the monthly (year, month) pairs an input group's
// sparse values are laid out over: the group's linked key period's range if
// linked, otherwise the full model timeline.
func groupPeriods(g InputGroup, cfg Config, keyPeriods []KeyPeriod) []yearMonth {
	sy, sm, ey, em := cfg.StartYear, cfg.StartMonth, cfg.EndYear, cfg.EndMonth

	if linkedID, ok := g.LinkedKeyPeriodID.Linked(); ok {
		for _, kp := range keyPeriods {
			if fmt.Sprintf("%d", kp.ID) == linkedID {
				sy, sm, ey, em = kp.StartYear, kp.StartMonth, kp.EndYear, kp.EndMonth
				break
			}
		}
	}

	var out []yearMonth
	y, m := sy, sm
	for y < ey || (y == ey && m <= em) {
		out = append(out, yearMonth{y, m})
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	return out
}

// valuesForInput expands one input's declared value(s) into a monthly array
// over its group's period range. See spec.md §4.2 "Group periods".
func valuesForInput(inp Input, groupPeriods []yearMonth, g InputGroup) []float64 {
	n := len(groupPeriods)

	entryMode := inp.EntryMode
	if entryMode == "" {
		entryMode = g.EntryMode
	}
	if entryMode == "" {
		entryMode = "values"
	}

	if entryMode == "constant" || g.GroupType == "constant" {
		val := inp.Value
		spread := inp.SpreadMethod
		if spread == "" {
			spread = "lookup"
		}
		if spread == "spread" && n > 0 {
			val /= float64(n)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = val
		}
		return out
	}

	freq := inp.ValueFrequency
	if freq == "" {
		freq = g.Frequency
	}
	if freq == "" {
		freq = "M"
	}

	if entryMode == "series" || g.EntryMode == "series" {
		innerMode := inp.EntryMode
		if innerMode == "" {
			innerMode = "constant"
		}
		if innerMode == "constant" {
			val := inp.Value
			switch freq {
			case "Q":
				val /= 3
			case "Y":
				val /= 12
			}
			out := make([]float64, n)
			for i := range out {
				out[i] = val
			}
			return out
		}
		// Falls through to sparse-values handling below.
	}

	out := make([]float64, n)
	if len(inp.Values) == 0 {
		return out
	}

	if freq == "M" {
		for k, v := range inp.Values {
			idx := atoiSafe(k)
			if idx >= 0 && idx < n {
				out[idx] = v
			}
		}
		return out
	}

	monthsPer := 3
	if freq == "Y" {
		monthsPer = 12
	}
	for k, v := range inp.Values {
		srcIdx := atoiSafe(k)
		if srcIdx < 0 {
			continue
		}
		baseMonthIdx := srcIdx * monthsPer
		per := v / float64(monthsPer)
		for offset := 0; offset < monthsPer; offset++ {
			mi := baseMonthIdx + offset
			if mi >= 0 && mi < n {
				out[mi] = per
			}
		}
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// BuildInputGroups materializes V/S/C/L group subtotal and per-item
// references. Groups are numbered per family in document order among active
// groups (groups with at least one input); the group with id 100 renumbers
// its items starting at (id - 99).
func BuildInputGroups(inputs []Input, groups []InputGroup, cfg Config, keyPeriods []KeyPeriod, tl timeline.Timeline) map[string][]float64 {
	p := tl.Periods()

	tlLookup := make(map[yearMonth]int, p)
	for i := 0; i < p; i++ {
		tlLookup[yearMonth{tl.Year[i], tl.Month[i]}] = i
	}

	inputsByGroup := make(map[int][]Input)
	for _, inp := range inputs {
		inputsByGroup[inp.GroupID] = append(inputsByGroup[inp.GroupID], inp)
	}

	modeIndex := map[string]int{}
	out := make(map[string][]float64)

	for _, g := range groups {
		groupInputs, active := inputsByGroup[g.ID]
		if !active || len(groupInputs) == 0 {
			continue
		}

		mode, prefix := normalizeMode(g)
		modeIndex[mode]++
		groupIdx := modeIndex[mode]
		groupRef := fmt.Sprintf("%s%d", prefix, groupIdx)

		gp := groupPeriods(g, cfg, keyPeriods)

		inputArrays := make(map[int][]float64, len(groupInputs))
		for _, inp := range groupInputs {
			vals := valuesForInput(inp, gp, g)
			arr := make([]float64, p)

			entryMode := inp.EntryMode
			if entryMode == "" {
				entryMode = g.EntryMode
			}

			if entryMode == "constant" && len(vals) > 0 {
				for i := range arr {
					arr[i] = vals[0]
				}
			} else {
				for pi, ym := range gp {
					if t, ok := tlLookup[ym]; ok && pi < len(vals) {
						arr[t] = vals[pi]
					}
				}
			}
			inputArrays[inp.ID] = arr
		}

		subtotal := make([]float64, p)
		for _, arr := range inputArrays {
			for i, v := range arr {
				subtotal[i] += v
			}
		}
		out[groupRef] = subtotal

		for _, inp := range groupInputs {
			inpNum := inp.ID
			if g.ID == 100 {
				inpNum = inp.ID - 99
			}
			itemRef := fmt.Sprintf("%s.%d", groupRef, inpNum)
			out[itemRef] = inputArrays[inp.ID]
		}
	}

	return out
}
