// Package modules implements the pluggable module solver contract: each
// template (iterative debt sizing, reserve/DSRF facility sizing) reads its
// declared inputs from the reference context and publishes one or more
// numbered output arrays back into it.
package modules

import (
	"strconv"

	"github.com/jiangshenghai57/glassbox/refs"
)

// ResolveScalar resolves a module input declared as a JSON literal number,
// a numeric string, or a context reference name. Referencing a context
// array returns its first non-zero value, or its first value if the whole
// array is zero — the module-input convention the engine uses for
// "a single representative rate/flag from a time series".
func ResolveScalar(value any, ctx *refs.Context, def float64) float64 {
	switch v := value.(type) {
	case nil:
		return def
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if arr, ok := ctx.Get(v); ok {
			for _, x := range arr {
				if x != 0 {
					return x
				}
			}
			if len(arr) > 0 {
				return arr[0]
			}
			return def
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// ResolveArray resolves a module input to a full-length array: a context
// reference is returned (resized to length if necessary), anything else is
// broadcast from ResolveScalar.
func ResolveArray(value any, ctx *refs.Context, length int, def float64) []float64 {
	if s, ok := value.(string); ok {
		if arr, ok := ctx.Get(s); ok {
			if len(arr) == length {
				return arr
			}
			out := make([]float64, length)
			copy(out, arr)
			return out
		}
	}
	v := ResolveScalar(value, ctx, def)
	out := make([]float64, length)
	for i := range out {
		out[i] = v
	}
	return out
}

// resolveRefArray looks up value as a plain context reference name, falling
// back to a zero array when it is unset or not a string — used for inputs
// that are always meant to be a ref (a CFADS series, a debt flag) rather
// than a possibly-scalar module parameter.
func resolveRefArray(value any, ctx *refs.Context, length int) []float64 {
	ref, ok := value.(string)
	if !ok || ref == "" {
		return make([]float64, length)
	}
	if arr, ok := ctx.Get(ref); ok {
		return arr
	}
	return make([]float64, length)
}
