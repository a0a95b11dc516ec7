package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiangshenghai57/glassbox/logger"
	"github.com/jiangshenghai57/glassbox/refmap"
)

func testInputs(t *testing.T) refmap.Document {
	t.Helper()
	return refmap.Document{
		Config: refmap.Config{StartYear: 2026, StartMonth: 1, EndYear: 2026, EndMonth: 3},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(t.TempDir())
	require.NoError(t, err)
	return log
}

func TestEngine_BasicRunAndResults(t *testing.T) {
	calcs := CalculationDocument{
		Calculations: []Calculation{
			{ID: 1, Name: "Base", Formula: "5", Type: "flow"},
			{ID: 2, Name: "Derived", Formula: "R1 + 2"},
			{ID: 3, Name: "Broken", Formula: "R1 +"},
		},
	}

	e := New(testInputs(t), calcs, testLogger(t))
	assert.Equal(t, 3, e.Periods())

	e.Run()

	base, ok := e.GetResult("R1")
	require.True(t, ok)
	assert.Equal(t, []float64{5, 5, 5}, base)

	derived, ok := e.GetResult("Derived")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 7, 7}, derived)

	errs := e.Errors()
	require.Contains(t, errs, "R3")

	names := e.CalculationNames()
	assert.Len(t, names, 3)
	assert.Contains(t, names, NamedRef{Ref: "R1", Name: "Base"})

	exported := e.ExportResults()
	require.Contains(t, exported, "R1")
	assert.Equal(t, "Base", exported["R1"].Name)
	assert.Equal(t, "flow", exported["R1"].Type)
	assert.Equal(t, []float64{5, 5, 5}, exported["R1"].Values)

	miy, ok := e.GetInputRef("T.MiY")
	require.True(t, ok)
	assert.Equal(t, []float64{12, 12, 12}, miy)
}

func TestEngine_GetAllCalculationNamesAliasesCalculationNames(t *testing.T) {
	calcs := CalculationDocument{Calculations: []Calculation{{ID: 1, Name: "Base", Formula: "1"}}}
	e := New(testInputs(t), calcs, testLogger(t))
	assert.Equal(t, e.CalculationNames(), e.GetAllCalculationNames())
}

func TestEngine_OverrideInputArraySurvivesRun(t *testing.T) {
	calcs := CalculationDocument{
		Calculations: []Calculation{{ID: 1, Name: "PlusOne", Formula: "V1 + 1"}},
	}
	e := New(testInputs(t), calcs, testLogger(t))
	e.OverrideInput("V1", []float64{1, 2, 3})
	assert.Equal(t, []string{"V1"}, e.OverriddenRefs())

	e.Run()
	result, ok := e.GetResult("R1")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4}, result)
	assert.Equal(t, 1, e.NodeCount())

	// A second Run (as a re-run after further overrides) must not lose V1,
	// since refmap.Build never produces it itself.
	e.Run()
	result, ok = e.GetResult("R1")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4}, result)
}

func TestEngine_OverrideConstantScalarBroadcasts(t *testing.T) {
	calcs := CalculationDocument{
		Calculations: []Calculation{{ID: 1, Name: "Doubled", Formula: "C1 * 2"}},
	}
	e := New(testInputs(t), calcs, testLogger(t))
	e.OverrideConstant("C1", 9.5)

	e.Run()
	result, ok := e.GetResult("R1")
	require.True(t, ok)
	assert.Equal(t, []float64{19, 19, 19}, result)
}

func TestEngine_ModuleSolveExposedThroughGetResultAndExportResults(t *testing.T) {
	calcs := CalculationDocument{
		Calculations: []Calculation{
			{ID: 1, Name: "CFADS", Formula: "1000"},
			{ID: 2, Name: "DebtFlag", Formula: "1"},
		},
		Modules: []ModuleDef{
			{
				TemplateID: "iterative_debt_sizing",
				Inputs: map[string]any{
					"cfadsRef":        "R1",
					"targetDSCR":      1.4,
					"debtFlagRef":     "R2",
					"totalFundingRef": 100000.0,
					"maxGearingPct":   80.0,
					"tenorYears":      2.0,
					"debtPeriod":      "Q",
					"tolerance":       0.1,
					"maxIterations":   50.0,
				},
			},
		},
	}

	inputs := refmap.Document{
		Config: refmap.Config{StartYear: 2026, StartMonth: 1, EndYear: 2027, EndMonth: 12},
	}
	e := New(inputs, calcs, testLogger(t))
	e.Run()

	sizedDebt, ok := e.GetResult("M1.1")
	require.True(t, ok)
	require.NotEmpty(t, sizedDebt)
	assert.Greater(t, sizedDebt[0], 0.0)
	assert.LessOrEqual(t, sizedDebt[0], 80000.0)

	exported := e.ExportResults()
	require.Contains(t, exported, "M1.1")
	assert.Equal(t, "module", exported["M1.1"].Type)
}

func TestEngine_DisabledModuleProducesNoOutputs(t *testing.T) {
	disabled := false
	calcs := CalculationDocument{
		Modules: []ModuleDef{
			{TemplateID: "iterative_debt_sizing", Inputs: map[string]any{}, Enabled: &disabled},
		},
	}
	e := New(testInputs(t), calcs, testLogger(t))
	e.Run()

	_, ok := e.GetResult("M1.1")
	assert.False(t, ok)
}

func TestEngine_MRefMapAliasesLegacyModuleRefs(t *testing.T) {
	calcs := CalculationDocument{
		Calculations: []Calculation{
			{ID: 1, Name: "LegacyConsumer", Formula: "M1.1 + 1"},
			{ID: 2, Name: "Converted", Formula: "10"},
		},
		MRefMap: map[string]string{"M1.1": "R2"},
	}
	e := New(testInputs(t), calcs, testLogger(t))
	e.Run()

	assert.Empty(t, e.Errors())
	result, ok := e.GetResult("R1")
	require.True(t, ok)
	assert.Equal(t, []float64{11, 11, 11}, result)
}

func TestEngine_UnknownNameOrRefReturnsFalse(t *testing.T) {
	calcs := CalculationDocument{Calculations: []Calculation{{ID: 1, Name: "Base", Formula: "1"}}}
	e := New(testInputs(t), calcs, testLogger(t))
	e.Run()

	_, ok := e.GetResult("Nonexistent")
	assert.False(t, ok)
	_, ok = e.GetInputRef("Nonexistent")
	assert.False(t, ok)
}
