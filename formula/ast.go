package formula

import "regexp"

// refPattern mirrors the engine's reference-name grammar: one of
// V/S/C/I/F/L/R/M followed by digits, optionally dotted numeric
// sub-indices (module outputs are numbered by output position within their
// template), and optionally a trailing .Start/.End, or the T.<name>
// calendar constants.
var refPattern = regexp.MustCompile(`^([VSCIFLRM]\d+(\.\d+)*(\.(Start|End))?|T\.[A-Za-z]+)$`)

func isRefName(s string) bool {
	return refPattern.MatchString(s)
}

// NodeKind discriminates the variants of Expr.
type NodeKind int

const (
	KindNumber NodeKind = iota
	KindRef
	KindBinary
	KindUnary
	KindCall
)

// Expr is a parsed formula AST node. A formula compiles to exactly one Expr
// tree, which EvalArray or EvalAt then walk against a reference context.
type Expr struct {
	Kind NodeKind

	Num float64 // KindNumber
	Ref string  // KindRef

	Op          string  // KindBinary, KindUnary: +,-,*,/,^,%,<,<=,>,>=,==,!=,&&,||, or unary "-"/"!"
	Left, Right *Expr   // KindBinary
	Operand     *Expr   // KindUnary
	Func        string  // KindCall: upper-cased builtin name
	Args        []*Expr // KindCall
}

// arrayFuncs is the set of builtins that accumulate across the period axis
// rather than act pointwise; they need the whole array (or, in cluster mode,
// every prior period) to produce a single period's value.
var arrayFuncs = map[string]bool{
	"CUMSUM": true, "CUMSUM_Y": true, "CUMPROD": true, "CUMPROD_Y": true,
	"PREVSUM": true, "PREVVAL": true, "SHIFT": true, "COUNT": true,
}

// lagFuncs introduce a soft (lag) dependency on their first argument: the
// scheduler may break a hard cycle through one of these without changing the
// computed result, since the reference is only read at an earlier period.
var lagFuncs = map[string]bool{
	"SHIFT": true, "PREVSUM": true, "PREVVAL": true,
}
