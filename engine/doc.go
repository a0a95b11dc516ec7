// Package engine wires the reference map, formula scheduler, and module
// solvers together behind the public surface a caller drives a model run
// through: New, OverrideInput, Run, and the various result accessors.
package engine

// Calculation is one formula-backed output, producing reference R<ID>.
type Calculation struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Formula string `json:"formula"`
	Type    string `json:"type"`
}

// ModuleDef is one module-solver instance, producing references
// M<position>.<1..N> where position is this module's 1-based index within
// CalculationDocument.Modules.
type ModuleDef struct {
	TemplateID     string         `json:"templateId"`
	Inputs         map[string]any `json:"inputs"`
	Enabled        *bool          `json:"enabled"`
	Converted      bool           `json:"converted"`
	FullyConverted bool           `json:"fullyConverted"`
}

// CalculationDocument is the full "model-calculations.json" structure.
type CalculationDocument struct {
	Calculations []Calculation `json:"calculations"`
	Modules      []ModuleDef   `json:"modules"`

	// MRefMap aliases legacy 'M<mid>.<out>' references to the 'R<id>' that
	// replaced them once a module was converted into an ordinary
	// calculation. Any node still carrying the legacy M-ref is rewritten
	// through this table before dependency extraction.
	MRefMap map[string]string `json:"_mRefMap"`
}

// NamedRef pairs a formula output reference with its human-readable name.
type NamedRef struct {
	Ref  string
	Name string
}

// ExportedResult is one calculation's result, shaped for external transport
// (a JSON API response, an archival record).
type ExportedResult struct {
	Name    string    `json:"name"`
	Formula string    `json:"formula"`
	Type    string    `json:"type"`
	Values  []float64 `json:"values"`
}
