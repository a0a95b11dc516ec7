// Package refs holds the reference map: every symbolic name (T.DiM, V1.5,
// R12, M2.1, ...) resolved to a dense period-indexed array. Per the
// "Dynamic reference context" design note, lookups are backed by an interned
// id and a dense slice-of-slices rather than a map of map, so that a formula
// referencing the same name across many periods pays one map lookup total.
package refs

// RefID is an interned handle for a reference name.
type RefID int

// Context owns the reference map for one engine run. It grows monotonically
// during Run() and is otherwise read-only; overrides replace an entry's
// array wholesale rather than mutating in place.
type Context struct {
	periods int
	names   map[string]RefID
	arrays  [][]float64
}

// New creates an empty context for a run with the given period count.
func New(periods int) *Context {
	return &Context{
		periods: periods,
		names:   make(map[string]RefID),
		arrays:  make([][]float64, 0, 256),
	}
}

// Periods returns P.
func (c *Context) Periods() int {
	return c.periods
}

// Intern returns the RefID for name, allocating one (with a zero array) if
// it is not yet known.
func (c *Context) Intern(name string) RefID {
	if id, ok := c.names[name]; ok {
		return id
	}
	id := RefID(len(c.arrays))
	c.names[name] = id
	c.arrays = append(c.arrays, make([]float64, c.periods))
	return id
}

// Set binds name to arr. arr must have length Periods(); a shorter/longer
// slice is defensively resized by copying into a fresh P-length array.
func (c *Context) Set(name string, arr []float64) {
	id := c.Intern(name)
	if len(arr) == c.periods {
		c.arrays[id] = arr
		return
	}
	fixed := make([]float64, c.periods)
	copy(fixed, arr)
	c.arrays[id] = fixed
}

// SetScalar broadcasts v across every period.
func (c *Context) SetScalar(name string, v float64) {
	arr := make([]float64, c.periods)
	for i := range arr {
		arr[i] = v
	}
	c.Set(name, arr)
}

// Get returns the array bound to name, and whether it is known.
func (c *Context) Get(name string) ([]float64, bool) {
	id, ok := c.names[name]
	if !ok {
		return nil, false
	}
	return c.arrays[id], true
}

// Has reports whether name is bound.
func (c *Context) Has(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Names returns every bound reference name. Order is unspecified.
func (c *Context) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	return out
}

// Merge binds every entry of other into c, overwriting existing bindings of
// the same name.
func (c *Context) Merge(other map[string][]float64) {
	for name, arr := range other {
		c.Set(name, arr)
	}
}
