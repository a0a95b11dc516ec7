package modules

import (
	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/glassbox/refs"
	"github.com/jiangshenghai57/glassbox/timeline"
)

// SolveDebtSizing binary-searches the largest constant debt draw that can
// be fully repaid, period by period, out of available cash-flow-available-
// for-debt-service capacity over the debt window. It supports the
// contracted/merchant CFADS split (two DSCR targets blended into one
// capacity series) and, when neither is configured, falls back to the
// original single-CFADS/single-DSCR path.
func SolveDebtSizing(def Definition, length int, ctx *refs.Context, tl timeline.Timeline) map[string][]float64 {
	in := def.Inputs

	contractedCfadsRef, _ := in["contractedCfadsRef"].(string)
	merchantCfadsRef, _ := in["merchantCfadsRef"].(string)
	cfadsRef, _ := in["cfadsRef"].(string)
	debtFlagRef, _ := in["debtFlagRef"].(string)

	contractedDSCR := ResolveScalar(valueOr(in["contractedDSCR"], 1.35), ctx, 1.35)
	merchantDSCR := ResolveScalar(valueOr(in["merchantDSCR"], 1.50), ctx, 1.50)
	targetDSCR := ResolveScalar(valueOr(in["targetDSCR"], 1.4), ctx, 1.4)
	maxGearingPct := ResolveScalar(valueOr(in["maxGearingPct"], 65.0), ctx, 65)
	interestRateArray := ResolveArray(valueOr(in["interestRatePct"], 5.0), ctx, length, 0)
	tenorYears := ResolveScalar(valueOr(in["tenorYears"], 18.0), ctx, 18)
	debtPeriod, _ := in["debtPeriod"].(string)
	if debtPeriod == "" {
		debtPeriod = "Q"
	}
	tolerance := ResolveScalar(valueOr(in["tolerance"], 0.1), ctx, 0.1)
	maxIterations := int(ResolveScalar(valueOr(in["maxIterations"], 50.0), ctx, 50))

	useNew := contractedCfadsRef != "" || merchantCfadsRef != ""

	contractedCfads := resolveRefArray(contractedCfadsRef, ctx, length)
	merchantCfads := resolveRefArray(merchantCfadsRef, ctx, length)
	var legacyCfads []float64
	if cfadsRef != "" {
		if arr, ok := ctx.Get(cfadsRef); ok {
			legacyCfads = arr
		}
	}

	dsCapacity := make([]float64, length)
	totalCfads := make([]float64, length)
	for i := 0; i < length; i++ {
		switch {
		case useNew:
			var cc, mc float64
			if contractedDSCR > 0 {
				cc = contractedCfads[i] / contractedDSCR
			}
			if merchantDSCR > 0 {
				mc = merchantCfads[i] / merchantDSCR
			}
			dsCapacity[i] = cc + mc
			totalCfads[i] = contractedCfads[i] + merchantCfads[i]
		case legacyCfads != nil && i < len(legacyCfads):
			if targetDSCR > 0 {
				dsCapacity[i] = legacyCfads[i] / targetDSCR
			}
			totalCfads[i] = legacyCfads[i]
		}
	}

	debtFlag := resolveRefArray(debtFlagRef, ctx, length)
	debtStart := -1
	for i := 0; i < length; i++ {
		if debtFlag[i] == 1 {
			debtStart = i
			break
		}
	}
	if debtStart < 0 {
		return map[string][]float64{"sized_debt": make([]float64, length)}
	}

	totalFunding := resolveTotalFunding(in["totalFundingRef"], ctx, debtStart)

	debtFlagEnd := debtStart
	for i := length - 1; i >= debtStart; i-- {
		if debtFlag[i] == 1 {
			debtFlagEnd = i
			break
		}
	}
	tenorMonths := int(tenorYears * 12)
	debtEnd := minInt(debtStart+tenorMonths-1, debtFlagEnd, length-1)

	lower := 0.0
	upper := totalFunding * (maxGearingPct / 100)
	bestDebt := 0.0

	for iter := 0; iter < maxIterations; iter++ {
		if upper-lower <= tolerance {
			break
		}
		test := (lower + upper) / 2
		if feasible(test, debtStart, debtEnd, length, interestRateArray, dsCapacity, debtPeriod, tl) {
			lower = test
			bestDebt = test
		} else {
			upper = test
		}
	}

	out := make([]float64, length)
	rounded := decimal.NewFromFloat(bestDebt).Round(2)
	v, _ := rounded.Float64()
	for i := range out {
		out[i] = v
	}
	return map[string][]float64{"sized_debt": out}
}

// feasible runs one amortization trial at the candidate debt level and
// reports whether it fully repays within [debtStart, debtEnd] without ever
// falling more than 10% short of the minimum required principal at a
// payment date.
func feasible(test float64, debtStart, debtEnd, length int, interestRateArray, dsCapacity []float64, debtPeriod string, tl timeline.Timeline) bool {
	balance := decimal.NewFromFloat(test)
	var accruedInterest, accruedCapacity decimal.Decimal
	ok := true

	last := debtEnd
	if last+1 > length {
		last = length - 1
	}
	for i := debtStart; i <= last; i++ {
		monthlyRate := interestRateArray[i] / 100 / 12
		accruedInterest = accruedInterest.Add(balance.Mul(decimal.NewFromFloat(monthlyRate)))
		accruedCapacity = accruedCapacity.Add(decimal.NewFromFloat(dsCapacity[i]))

		isPay := isPeriodEnd(i, debtPeriod, tl) || i == debtEnd
		if !isPay {
			continue
		}

		remaining := 0
		for j := i; j <= debtEnd; j++ {
			if isPeriodEnd(j, debtPeriod, tl) || j == debtEnd {
				remaining++
			}
		}

		interest := accruedInterest
		minPrinc := balance
		if remaining > 0 {
			minPrinc = balance.Div(decimal.NewFromInt(int64(remaining)))
		}
		maxPrinc := accruedCapacity.Sub(interest)
		if maxPrinc.IsNegative() {
			maxPrinc = decimal.Zero
		}

		var princ decimal.Decimal
		switch {
		case i == debtEnd:
			princ = balance
		case maxPrinc.GreaterThanOrEqual(minPrinc):
			princ = minPrinc
		default:
			princ = maxPrinc
			if princ.LessThan(minPrinc.Mul(decimal.NewFromFloat(0.9))) {
				ok = false
			}
		}
		if princ.GreaterThan(balance) {
			princ = balance
		}
		balance = balance.Sub(princ)
		accruedInterest = decimal.Zero
		accruedCapacity = decimal.Zero
	}

	fullyRepaid := balance.LessThan(decimal.NewFromFloat(0.001))
	return fullyRepaid && ok
}

func isPeriodEnd(monthIdx int, debtPeriod string, tl timeline.Timeline) bool {
	if debtPeriod == "M" {
		return true
	}
	month := (monthIdx % 12) + 1
	if monthIdx < tl.Periods() {
		month = tl.Month[monthIdx]
	}
	switch debtPeriod {
	case "Q":
		return month == 3 || month == 6 || month == 9 || month == 12
	case "Y":
		return month == 12
	}
	return true
}

func resolveTotalFunding(value any, ctx *refs.Context, debtStart int) float64 {
	switch v := value.(type) {
	case string:
		if arr, ok := ctx.Get(v); ok && len(arr) > 0 {
			if debtStart > 0 && debtStart-1 < len(arr) {
				return arr[debtStart-1]
			}
			return arr[0]
		}
	case float64:
		return v
	}
	return 0
}

func valueOr(v any, def float64) any {
	if v == nil {
		return def
	}
	return v
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
