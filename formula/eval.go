package formula

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/glassbox/refs"
)

// EvalArray evaluates e over every period in ctx, returning a dense array.
// This is the engine's default evaluation path: outside a soft-cycle
// cluster, every reference an expression touches is already fully resolved,
// so the whole tree can be computed column-wise without per-period
// re-derivation.
func EvalArray(e *Expr, ctx *refs.Context, years []int) []float64 {
	p := ctx.Periods()
	switch e.Kind {
	case KindNumber:
		return fill(p, e.Num)

	case KindRef:
		if arr, ok := ctx.Get(e.Ref); ok {
			return arr
		}
		return fill(p, 0)

	case KindBinary:
		l := EvalArray(e.Left, ctx, years)
		r := EvalArray(e.Right, ctx, years)
		out := make([]float64, p)
		for i := 0; i < p; i++ {
			out[i] = binOp(e.Op, l[i], r[i])
		}
		return out

	case KindUnary:
		v := EvalArray(e.Operand, ctx, years)
		out := make([]float64, p)
		for i, x := range v {
			out[i] = unOp(e.Op, x)
		}
		return out

	case KindCall:
		return evalCallArray(e, ctx, years)
	}
	return fill(p, 0)
}

func evalCallArray(e *Expr, ctx *refs.Context, years []int) []float64 {
	p := ctx.Periods()

	switch e.Func {
	case "CUMSUM":
		inner := EvalArray(e.Args[0], ctx, years)
		return cumsum(inner)
	case "CUMSUM_Y":
		inner := EvalArray(e.Args[0], ctx, years)
		return cumsumY(inner, years)
	case "CUMPROD":
		inner := EvalArray(e.Args[0], ctx, years)
		return cumprod(inner)
	case "CUMPROD_Y":
		inner := EvalArray(e.Args[0], ctx, years)
		return cumprodY(inner, years)
	case "PREVSUM":
		inner := EvalArray(e.Args[0], ctx, years)
		return prevsum(inner)
	case "PREVVAL":
		inner := EvalArray(e.Args[0], ctx, years)
		return prevval(inner)
	case "COUNT":
		inner := EvalArray(e.Args[0], ctx, years)
		return countNonZero(inner)
	case "SHIFT":
		inner := EvalArray(e.Args[0], ctx, years)
		n := int(constNumber(e.Args[1]))
		return shift(inner, n)
	}

	args := make([][]float64, len(e.Args))
	for i, a := range e.Args {
		args[i] = EvalArray(a, ctx, years)
	}
	out := make([]float64, p)
	for i := 0; i < p; i++ {
		vals := make([]float64, len(args))
		for k, a := range args {
			vals[k] = a[i]
		}
		out[i] = applyBuiltin(e.Func, vals)
	}
	return out
}

// constNumber evaluates a literal/constant-foldable node (used for SHIFT's
// lag-count argument, which is never itself a time series).
func constNumber(e *Expr) float64 {
	if e.Kind == KindNumber {
		return e.Num
	}
	if e.Kind == KindUnary && e.Op == "-" {
		return -constNumber(e.Operand)
	}
	return 0
}

// EvalAt evaluates e at a single period t, recomputing array functions from
// scratch by rescanning every prior period. This mirrors the engine's
// soft-cycle cluster evaluator, which re-derives CUMSUM/PREVSUM/COUNT (etc.)
// against a context whose cluster members are only partially filled up to
// period t; CUMSUM_Y/CUMPROD_Y are not supported inside a cluster (matching
// the original engine, which never implemented them for the per-period
// path) and evaluate to 0 there.
func EvalAt(e *Expr, ctx *refs.Context, t int) float64 {
	if t < 0 {
		return 0
	}
	switch e.Kind {
	case KindNumber:
		return e.Num

	case KindRef:
		if arr, ok := ctx.Get(e.Ref); ok && t < len(arr) {
			return arr[t]
		}
		return 0

	case KindBinary:
		return binOp(e.Op, EvalAt(e.Left, ctx, t), EvalAt(e.Right, ctx, t))

	case KindUnary:
		return unOp(e.Op, EvalAt(e.Operand, ctx, t))

	case KindCall:
		return evalCallAt(e, ctx, t)
	}
	return 0
}

func evalCallAt(e *Expr, ctx *refs.Context, t int) float64 {
	switch e.Func {
	case "PREVSUM":
		var total float64
		for j := 0; j < t; j++ {
			total += EvalAt(e.Args[0], ctx, j)
		}
		return total
	case "PREVVAL":
		if t == 0 {
			return 0
		}
		return EvalAt(e.Args[0], ctx, t-1)
	case "SHIFT":
		n := int(constNumber(e.Args[1]))
		if t < n {
			return 0
		}
		return EvalAt(e.Args[0], ctx, t-n)
	case "CUMSUM":
		var total float64
		for j := 0; j <= t; j++ {
			total += EvalAt(e.Args[0], ctx, j)
		}
		return total
	case "CUMPROD":
		product := 1.0
		for j := 0; j <= t; j++ {
			product *= EvalAt(e.Args[0], ctx, j)
		}
		return product
	case "COUNT":
		cnt := 0
		for j := 0; j <= t; j++ {
			if EvalAt(e.Args[0], ctx, j) != 0 {
				cnt++
			}
		}
		return float64(cnt)
	case "CUMSUM_Y", "CUMPROD_Y":
		return 0
	}

	vals := make([]float64, len(e.Args))
	for i, a := range e.Args {
		vals[i] = EvalAt(a, ctx, t)
	}
	return applyBuiltin(e.Func, vals)
}

func binOp(op string, a, b float64) float64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			return 0
		}
		return a / b
	case "%":
		if b == 0 {
			return 0
		}
		return math.Mod(a, b)
	case "^":
		return safeFinite(math.Pow(a, b))
	case "<":
		return boolToF(a < b)
	case "<=":
		return boolToF(a <= b)
	case ">":
		return boolToF(a > b)
	case ">=":
		return boolToF(a >= b)
	case "==":
		return boolToF(a == b)
	case "!=":
		return boolToF(a != b)
	case "&&":
		return boolToF(a != 0 && b != 0)
	case "||":
		return boolToF(a != 0 || b != 0)
	}
	return 0
}

func unOp(op string, a float64) float64 {
	switch op {
	case "-":
		return -a
	case "!":
		return boolToF(a == 0)
	}
	return 0
}

func applyBuiltin(fn string, a []float64) float64 {
	switch fn {
	case "IF":
		if a[0] != 0 {
			return a[1]
		}
		return a[2]
	case "AND":
		return boolToF(a[0] != 0 && a[1] != 0)
	case "OR":
		return boolToF(a[0] != 0 || a[1] != 0)
	case "NOT":
		return boolToF(a[0] == 0)
	case "MIN":
		return math.Min(a[0], a[1])
	case "MAX":
		return math.Max(a[0], a[1])
	case "ABS":
		return math.Abs(a[0])
	case "ROUND":
		n := 0
		if len(a) == 2 {
			n = int(a[1])
		}
		return roundHalfAwayFromZero(a[0], n)
	}
	return 0
}

// roundHalfAwayFromZero rounds x to n decimal places, ties away from zero,
// using exact decimal arithmetic to avoid float-boundary surprises exactly
// at x*10^n == k+0.5.
func roundHalfAwayFromZero(x float64, n int) float64 {
	d := decimal.NewFromFloat(x)
	r := d.Round(int32(n))
	v, _ := r.Float64()
	return safeFinite(v)
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func safeFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func cumsum(arr []float64) []float64 {
	out := make([]float64, len(arr))
	var total float64
	for i, v := range arr {
		total += v
		out[i] = total
	}
	return out
}

// cumsumY mirrors the engine's year-boundary cumulative sum: each completed
// year's value is folded into the running total only once the year rolls
// over, using that year's *first* period value (bug-compatible, see
// original_source).
func cumsumY(arr []float64, years []int) []float64 {
	out := make([]float64, len(arr))
	var total float64
	lastYear := math.MinInt32
	var lastYearValue float64
	haveLastYearValue := false
	for i, v := range arr {
		cy := years[i]
		if lastYear != math.MinInt32 && cy != lastYear && haveLastYearValue {
			total += lastYearValue
		}
		out[i] = total
		if cy != lastYear {
			lastYearValue = v
			haveLastYearValue = true
		}
		lastYear = cy
	}
	return out
}

func cumprod(arr []float64) []float64 {
	out := make([]float64, len(arr))
	product := 1.0
	for i, v := range arr {
		product *= v
		out[i] = product
	}
	return out
}

func cumprodY(arr []float64, years []int) []float64 {
	out := make([]float64, len(arr))
	product := 1.0
	lastYear := math.MinInt32
	var lastYearValue float64
	haveLastYearValue := false
	for i, v := range arr {
		cy := years[i]
		if lastYear != math.MinInt32 && cy != lastYear && haveLastYearValue {
			product *= lastYearValue
		}
		out[i] = product
		if cy != lastYear {
			lastYearValue = v
			haveLastYearValue = true
		}
		lastYear = cy
	}
	return out
}

func shift(arr []float64, n int) []float64 {
	out := make([]float64, len(arr))
	if n < len(arr) && n >= 0 {
		copy(out[n:], arr[:len(arr)-n])
	}
	return out
}

func prevsum(arr []float64) []float64 {
	out := make([]float64, len(arr))
	var total float64
	for i, v := range arr {
		out[i] = total
		total += v
	}
	return out
}

func prevval(arr []float64) []float64 {
	out := make([]float64, len(arr))
	if len(arr) > 1 {
		copy(out[1:], arr[:len(arr)-1])
	}
	return out
}

func countNonZero(arr []float64) []float64 {
	out := make([]float64, len(arr))
	cnt := 0
	for i, v := range arr {
		if v != 0 {
			cnt++
		}
		out[i] = float64(cnt)
	}
	return out
}
