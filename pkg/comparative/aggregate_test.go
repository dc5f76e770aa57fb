package comparative

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(expected).Equal(actual), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

func assertRate(t *testing.T, expected string, actual *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, actual)
	assertDecimal(t, expected, *actual)
}

var sampleComponents = []Component{
	{Id: "C1", ActionType: "reboisement", Label: "Plantation pin", Zone: "Z1", Year: 2023, Budget: dec("1000"), Unit: "ha"},
	{Id: "C1", ActionType: "reboisement", Label: "Plantation pin", Zone: "Z1", Year: 2024, Budget: dec("500"), Unit: "ha"},
	{Id: "C2", ActionType: "Pistes", Label: "Ouverture piste", Zone: "Z2", Year: 2023, Budget: dec("2000"), Unit: "km"},
	{Id: "C3", ActionType: "Sensibilisation", Label: "Ateliers", Zone: "Z1", Year: 2024, Budget: dec("300"), Unit: "u"},
}

var samplePlanned = []PlannedLine{
	{Id: "P1", ComponentId: "C1", Zone: "Z1", Year: 2023, Amount: dec("800"), Quantity: dec("40")},
	{Id: "P2", ComponentId: "C1", Zone: "Z1", Year: 2024, Amount: dec("500"), Quantity: dec("20")},
	{Id: "P3", ComponentId: "C2", Zone: "Z2", Year: 2023, Amount: dec("2000"), Quantity: dec("12")},
}

var sampleProgrammed = []ProgrammedLine{
	{Id: "CP1", PlannedLineId: "P1", Amount: dec("600"), Quantity: dec("30")},
	{Id: "CP2", ComponentId: "C2", Zone: "Z2", Year: 2023, Amount: dec("1500")},
}

var sampleExecuted = []ExecutedLine{
	{Id: "E1", ProgrammedLineId: "CP1", Cost: dec("400"), Quantity: dec("18")},
	{Id: "E2", PlannedLineId: "P3", Cost: dec("1500"), Length: dec("11.5")},
	{Id: "E3", ComponentId: "C3", Zone: "z1 ", Year: 2024, Cost: dec("50")},
}

func TestComputeAggregates(t *testing.T) {
	t.Run("should compute a single row for the worked example", func(t *testing.T) {
		// given
		components := []Component{{Id: "C1", Zone: "Z1", Year: 2023, Budget: dec("1000")}}
		planned := []PlannedLine{{Id: "P1", ComponentId: "C1", Zone: "Z1", Year: 2023, Amount: dec("800")}}
		executed := []ExecutedLine{{Id: "E1", ComponentId: "C1", Zone: "Z1", Year: 2023, Cost: dec("400")}}

		// when
		result := ComputeAggregates(components, planned, nil, executed, Filters{})

		// then
		require.Len(t, result.Rows, 1)
		row := result.Rows[0]
		assertDecimal(t, "800", row.PlannedAmount)
		assertDecimal(t, "0", row.ProgrammedAmount)
		assertDecimal(t, "400", row.ExecutedAmount)
		assertRate(t, "50", row.ExecutionRate)
		assert.False(t, row.Unplanned)
		assert.Nil(t, row.BudgetGap)
		assert.Empty(t, result.Orphans)
	})

	t.Run("should produce one row per distinct component key", func(t *testing.T) {
		// given
		components := append([]Component{}, sampleComponents...)
		components = append(components, Component{Id: "C2", Zone: " z2", Year: 2023, Budget: dec("100")})

		// when
		result := ComputeAggregates(components, samplePlanned, sampleProgrammed, sampleExecuted, Filters{})

		// then
		require.Len(t, result.Rows, 4)
		assert.Equal(t, Key{ComponentId: "C1", Zone: "z1", Year: 2023}, result.Rows[0].Key)
		assert.Equal(t, Key{ComponentId: "C2", Zone: "z2", Year: 2023}, result.Rows[1].Key)
		assert.Equal(t, Key{ComponentId: "C1", Zone: "z1", Year: 2024}, result.Rows[2].Key)
		assert.Equal(t, Key{ComponentId: "C3", Zone: "z1", Year: 2024}, result.Rows[3].Key)
		// duplicated key sums the budgets
		assertDecimal(t, "2100", result.Rows[1].Budget)
	})

	t.Run("should attach lines through parent links and inherit zone and year", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, sampleExecuted, Filters{})

		// then
		require.Len(t, result.Rows, 4)
		c1 := result.Rows[0]
		assertDecimal(t, "600", c1.ProgrammedAmount)
		assertDecimal(t, "400", c1.ExecutedAmount)
		assertDecimal(t, "18", c1.ExecutedQuantity)
		assertRate(t, "66.67", c1.ProgrammedRate)
		require.NotNil(t, c1.BudgetGap)
		assertDecimal(t, "-200", *c1.BudgetGap)

		c2 := result.Rows[1]
		assertDecimal(t, "1500", c2.ExecutedAmount)
		assertDecimal(t, "11.5", c2.ExecutedQuantity, "length is used for km components")
		assertRate(t, "75", c2.ExecutionRate)
		assert.Empty(t, result.Orphans)
	})

	t.Run("should keep totals equal to the sum of the rows", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, sampleExecuted, Filters{})

		// then
		executed := decimal.Zero
		planned := decimal.Zero
		for _, row := range result.Rows {
			executed = executed.Add(row.ExecutedAmount)
			planned = planned.Add(row.PlannedAmount)
		}
		assert.True(t, executed.Equal(result.Totals.ExecutedAmount))
		assert.True(t, planned.Equal(result.Totals.PlannedAmount))
		assertDecimal(t, "1950", result.Totals.ExecutedAmount)
		assertDecimal(t, "3300", result.Totals.PlannedAmount)
		assertDecimal(t, "3800", result.Totals.ComponentBudget)
		assertRate(t, "59.09", result.Totals.ExecutionRate)
		assert.Equal(t, 4, result.Totals.Rows)
	})

	t.Run("should set zero rates when nothing was executed", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, nil, Filters{})

		// then
		for _, row := range result.Rows {
			assert.True(t, row.ExecutedAmount.IsZero())
			assertRate(t, "0", row.ExecutionRate)
			assert.False(t, row.Unplanned)
		}
		assertRate(t, "0", result.Totals.ExecutionRate)
	})

	t.Run("should leave the rate undefined when executed without a plan", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, sampleExecuted, Filters{})

		// then
		c3 := result.Rows[3]
		assert.Equal(t, "C3", c3.Key.ComponentId)
		assertDecimal(t, "50", c3.ExecutedAmount)
		assert.Nil(t, c3.ExecutionRate)
		assert.True(t, c3.Unplanned)
		assert.Equal(t, StatusInProgress, c3.Status)
	})

	t.Run("should treat nil collections as empty", func(t *testing.T) {
		// when
		result := ComputeAggregates(nil, nil, nil, nil, Filters{})

		// then
		assert.NotNil(t, result.Rows)
		assert.Empty(t, result.Rows)
		assert.NotNil(t, result.Orphans)
		assertRate(t, "0", result.Totals.ExecutionRate)
		assert.False(t, result.Totals.ProgramGap.Coherent)
	})

	t.Run("should not modify its inputs", func(t *testing.T) {
		// given
		executed := []ExecutedLine{{Id: "E1", ComponentId: "C1", Zone: "Z1", Year: 2023, Cost: dec("10")}}
		before := executed[0]

		// when
		ComputeAggregates(sampleComponents, samplePlanned, nil, executed, Filters{Years: []int{2023}})

		// then
		assert.Equal(t, before, executed[0])
	})
}

func TestComputeAggregates_Filters(t *testing.T) {
	t.Run("should return only rows of the filtered year", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, sampleExecuted, Filters{Years: []int{2024}})

		// then
		require.Len(t, result.Rows, 2)
		for _, row := range result.Rows {
			assert.Equal(t, 2024, row.Year)
		}
		assertDecimal(t, "500", result.Totals.PlannedAmount)
		assertDecimal(t, "50", result.Totals.ExecutedAmount)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		// given
		filters := Filters{Zones: []string{"z1"}, YearStart: 2023, YearEnd: 2023}
		once := ComputeAggregates(sampleComponents, samplePlanned, sampleProgrammed, sampleExecuted, filters)
		var kept []Component
		for _, c := range sampleComponents {
			for _, row := range once.Rows {
				if componentKey(c) == row.Key {
					kept = append(kept, c)
				}
			}
		}

		// when
		twice := ComputeAggregates(kept, samplePlanned, sampleProgrammed, sampleExecuted, filters)

		// then
		require.Len(t, once.Rows, 1)
		assert.Equal(t, once.Rows, twice.Rows)
		assert.Equal(t, once.Totals, twice.Totals)
	})

	t.Run("should match action types ignoring case and accents", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, nil, nil, Filters{ActionTypes: []string{"REBOISEMENT", "piste"}})

		// then
		require.Len(t, result.Rows, 3)
		for _, row := range result.Rows {
			assert.Contains(t, []string{"Reboisement", "Pistes"}, row.ActionType)
		}
	})

	t.Run("should search in labels", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, nil, nil, Filters{Search: "ATELIER"})

		// then
		require.Len(t, result.Rows, 1)
		assert.Equal(t, "C3", result.Rows[0].Key.ComponentId)
	})

	t.Run("should report orphans regardless of filters", func(t *testing.T) {
		// given
		executed := []ExecutedLine{{Id: "E9", ComponentId: "C9", Cost: dec("10")}}

		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, nil, executed, Filters{Years: []int{2024}})

		// then
		require.Len(t, result.Orphans, 1)
		assert.Equal(t, "E9", result.Orphans[0].LineId)
	})
}

func TestComputeAggregates_Orphans(t *testing.T) {
	// given
	planned := []PlannedLine{
		{Id: "P1", ComponentId: "C1", Zone: "Z1", Year: 2023, Amount: dec("800")},
		{Id: "P-missing"},
		{Id: "P-unknown", ComponentId: "C404", Zone: "Z1", Year: 2023},
		{Id: "P-mismatch", ComponentId: "C1", Zone: "Z9", Year: 2023},
		{Id: "P-ambiguous", ComponentId: "C1", Zone: "Z1"},
	}
	programmed := []ProgrammedLine{
		{Id: "CP-orphan-parent", PlannedLineId: "P-unknown"},
		{Id: "CP-no-parent", PlannedLineId: "P404"},
	}
	executed := []ExecutedLine{
		{Id: "E-no-link", Cost: dec("5")},
		{Id: "E-ok", PlannedLineId: "P1", Cost: dec("100")},
	}

	// when
	result := ComputeAggregates(sampleComponents, planned, programmed, executed, Filters{})

	// then
	expected := []Orphan{
		{Kind: KindPlanned, LineId: "P-missing", Reason: OrphanMissingLink},
		{Kind: KindPlanned, LineId: "P-unknown", Reason: OrphanUnknownComponent, Reference: "C404"},
		{Kind: KindPlanned, LineId: "P-mismatch", Reason: OrphanKeyMismatch, Reference: "C1"},
		{Kind: KindPlanned, LineId: "P-ambiguous", Reason: OrphanAmbiguousKey, Reference: "C1"},
		{Kind: KindProgrammed, LineId: "CP-orphan-parent", Reason: OrphanUnknownParent, Reference: "P-unknown"},
		{Kind: KindProgrammed, LineId: "CP-no-parent", Reason: OrphanUnknownParent, Reference: "P404"},
		{Kind: KindExecuted, LineId: "E-no-link", Reason: OrphanMissingLink},
	}
	assert.Equal(t, expected, result.Orphans)
	assertDecimal(t, "800", result.Rows[0].PlannedAmount)
	assertDecimal(t, "100", result.Rows[0].ExecutedAmount)
	assertDecimal(t, "100", result.Totals.ExecutedAmount)
}

func TestComputeAggregates_ExecutedParents(t *testing.T) {
	t.Run("should attach through the planned line when the CP line is gone", func(t *testing.T) {
		// given
		planned := []PlannedLine{{Id: "P1", ComponentId: "C1", Zone: "Z1", Year: 2023, Amount: dec("800")}}
		executed := []ExecutedLine{{Id: "E1", PlannedLineId: "P1", ProgrammedLineId: "CP-deleted", Cost: dec("400")}}

		// when
		result := ComputeAggregates(sampleComponents, planned, nil, executed, Filters{})

		// then
		assert.Empty(t, result.Orphans)
		assertDecimal(t, "400", result.Rows[0].ExecutedAmount)
	})

	t.Run("should prefer the CP line when both parents are known", func(t *testing.T) {
		// given
		planned := []PlannedLine{
			{Id: "P1", ComponentId: "C1", Zone: "Z1", Year: 2023},
			{Id: "P2", ComponentId: "C1", Zone: "Z1", Year: 2024},
		}
		programmed := []ProgrammedLine{{Id: "CP2", PlannedLineId: "P2"}}
		executed := []ExecutedLine{{Id: "E1", PlannedLineId: "P1", ProgrammedLineId: "CP2", Cost: dec("400")}}

		// when
		result := ComputeAggregates(sampleComponents, planned, programmed, executed, Filters{})

		// then
		assert.Empty(t, result.Orphans)
		assertDecimal(t, "0", result.Rows[0].ExecutedAmount)
		assertDecimal(t, "400", result.Totals.ExecutedAmount)
	})

	t.Run("should report an unknown CP parent without planned link", func(t *testing.T) {
		// given
		executed := []ExecutedLine{{Id: "E1", ProgrammedLineId: "CP-deleted", Cost: dec("400")}}

		// when
		result := ComputeAggregates(sampleComponents, nil, nil, executed, Filters{})

		// then
		assert.Equal(t, []Orphan{{Kind: KindExecuted, LineId: "E1", Reason: OrphanUnknownParent, Reference: "CP-deleted"}}, result.Orphans)
	})
}

func TestComputeAggregates_Options(t *testing.T) {
	t.Run("should fall back to the component budget without planned lines", func(t *testing.T) {
		// given
		components := []Component{{Id: "C1", Zone: "Z1", Year: 2023, Budget: dec("1000"), Quantity: dec("50")}}
		executed := []ExecutedLine{{Id: "E1", ComponentId: "C1", Cost: dec("250")}}

		// when
		result := ComputeAggregates(components, nil, nil, executed, Filters{}, WithComponentBudgetFallback())

		// then
		require.Len(t, result.Rows, 1)
		assertDecimal(t, "1000", result.Rows[0].PlannedAmount)
		assertDecimal(t, "50", result.Rows[0].PlannedQuantity)
		assertRate(t, "25", result.Rows[0].ExecutionRate)
		assert.True(t, result.Totals.UsesFallback)
		assert.True(t, result.Totals.ProgramGap.Coherent)
	})

	t.Run("should not fall back when planned lines exist", func(t *testing.T) {
		// when
		result := ComputeAggregates(sampleComponents, samplePlanned, nil, nil, Filters{}, WithComponentBudgetFallback())

		// then
		assert.False(t, result.Totals.UsesFallback)
		assertDecimal(t, "0", result.Rows[3].PlannedAmount)
	})

	t.Run("should attach open alerts matching the row", func(t *testing.T) {
		// given
		alerts := []Alert{
			{Id: "A1", Zone: "Z1", Status: "ouverte"},
			{Id: "A2", Zone: "Z1", ActionType: "Reboisement", Year: 2024},
			{Id: "A3", Zone: "Z1", Status: "resolue"},
			{Id: "A4", Zone: "Z2"},
		}

		// when
		result := ComputeAggregates(sampleComponents, nil, nil, nil, Filters{Years: []int{2024}}, WithAlerts(alerts))

		// then
		require.Len(t, result.Rows, 2)
		assert.Equal(t, []string{"A1", "A2"}, result.Rows[0].AlertIds)
		assert.Equal(t, []string{"A1"}, result.Rows[1].AlertIds)
	})
}

func TestProgramGap(t *testing.T) {
	t.Run("should be coherent within one percent", func(t *testing.T) {
		gap := programGap(dec("1005"), dec("1000"), false, true, true)
		assertDecimal(t, "5", gap.Delta)
		assertDecimal(t, "0.005", gap.Ratio)
		assert.True(t, gap.Coherent)
	})

	t.Run("should be incoherent beyond one percent", func(t *testing.T) {
		gap := programGap(dec("900"), dec("1000"), false, true, true)
		assertDecimal(t, "-100", gap.Delta)
		assert.False(t, gap.Coherent)
	})
}

func TestRowStatus(t *testing.T) {
	tests := []struct {
		name       string
		planned    string
		programmed string
		executed   string
		want       Status
	}{
		{"nothing at all", "0", "0", "0", StatusNotStarted},
		{"planned only", "100", "0", "0", StatusInProgress},
		{"programmed only", "0", "100", "0", StatusInProgress},
		{"within band", "100", "0", "96", StatusCompleted},
		{"upper band edge", "100", "0", "105", StatusCompleted},
		{"below band", "100", "0", "50", StatusDrifting},
		{"above band", "100", "0", "120", StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rowStatus(dec(tt.planned), dec(tt.programmed), dec(tt.executed)))
		})
	}
}
