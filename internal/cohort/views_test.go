package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewRows() []Row {
	event := func(id string, tenure int, status, cohort, group string, month int, cost float64) Row {
		label := LabelAfter
		switch {
		case month == 0:
			label = LabelZeroMonth
		case month < 0:
			label = LabelBefore
		}
		r := Row{
			ID: id, Matched: true, TenureStatus: status, Cohort: cohort, Group: group,
			RelativeMonth: intPtr(month), BeforeAfter: label, Cost: cost, Quantity: 1,
			Sex: "F", Age: 40, AgeBand: "39-43",
		}
		if status == StatusOK {
			r.Tenure = intPtr(tenure)
		}
		return r
	}
	return []Row{
		event("A", 3, StatusOK, "TP_03", "G1", -2, 10),
		event("A", 3, StatusOK, "TP_03", "G1", 0, 5),
		event("A", 3, StatusOK, "TP_03", "G1", 2, 20),
		event("A", 3, StatusOK, "TP_03", "G2", 5, 40),
		event("B", 1, StatusOK, "TP_01", "G1", 1, 30),
		event("C", 0, StatusInclusionNotComputable, NotEligible, "G1", 1, 1000),
		{ID: "D", ServiceDate: "2023-01-01", Cost: 7, Quantity: 1},
	}
}

func TestFilterEvents(t *testing.T) {
	rows := viewRows()
	sum := func(rs []Row) float64 {
		var s float64
		for _, r := range rs {
			s += r.Cost
		}
		return s
	}

	tests := []struct {
		name     string
		mutate   func(*Filters)
		wantCost float64
		wantRows int
	}{
		{"defaults keep inside window", func(*Filters) {}, 60, 3},
		{"outside window", func(f *Filters) { f.Period = PeriodOutside }, 40, 1},
		{"both periods", func(f *Filters) { f.Period = PeriodBoth }, 100, 4},
		{"both periods with zero month", func(f *Filters) { f.Period = PeriodBoth; f.IncludeZeroMonth = true }, 105, 5},
		{"cohort filter", func(f *Filters) { f.CohortLabels = []string{"TP_01"} }, 30, 1},
		{"group filter", func(f *Filters) { f.Period = PeriodBoth; f.Groups = []string{"G2"} }, 40, 1},
		{"window cap", func(f *Filters) { f.WindowCapMonths = 1 }, 30, 1},
		{"unknown period behaves as inside", func(f *Filters) { f.Period = "whenever" }, 60, 3},
		{"empty period behaves as inside", func(f *Filters) { f.Period = "" }, 60, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFilters()
			tt.mutate(&f)
			got := FilterEvents(rows, f)
			assert.Len(t, got, tt.wantRows)
			assert.Equal(t, tt.wantCost, sum(got))
		})
	}
}

func TestBaseCohort(t *testing.T) {
	rows := viewRows()

	base := BaseCohort(rows, DefaultFilters())
	require.Len(t, base, 2)
	assert.Equal(t, "A", base[0].ID)
	assert.Equal(t, "B", base[1].ID)

	f := DefaultFilters()
	f.Groups = []string{"G2"}
	assert.Len(t, BaseCohort(rows, f), 2, "group filter must not shrink the base")

	f = DefaultFilters()
	f.CohortLabels = []string{"TP_03"}
	assert.Len(t, BaseCohort(rows, f), 1)
}

func TestBuildResults(t *testing.T) {
	trend := &Trend{Prediction: 321}
	res := BuildResults(viewRows(), trend, DefaultFilters())

	assert.Equal(t, 2, res.KPIs.Lives)
	assert.Equal(t, 2, res.KPIs.LivesWithEvents)
	assert.Equal(t, 60.0, res.KPIs.TotalCost)
	assert.Equal(t, 30.0, res.KPIs.PMPM)
	assert.Equal(t, 321.0, res.KPIs.Prediction)

	assert.Equal(t, []int{1, 2}, res.Charts.Timeline.X)
	assert.Equal(t, []float64{30, 20}, res.Charts.Timeline.Y)
	assert.Same(t, trend, res.Charts.Trend)

	require.Len(t, res.Comparative, 4)
	assert.Equal(t, 10.0, res.Comparative[0].Cost)
	assert.Equal(t, 50.0, res.Comparative[1].Cost)
	assert.Equal(t, 2.0, res.Comparative[1].BaseUsers)

	require.Len(t, res.RawData, 2)
	assert.Equal(t, DemographicRecord{ID: "A", Sex: "F", Age: 40, AgeBand: "39-43", Tenure: 3, Cohort: "TP_03"}, res.RawData[0])
}

func TestBuildResultsEmpty(t *testing.T) {
	res := BuildResults(nil, nil, DefaultFilters())
	assert.Zero(t, res.KPIs.Lives)
	assert.Zero(t, res.KPIs.PMPM)
	assert.Zero(t, res.KPIs.Prediction)
	assert.NotNil(t, res.RawData)
	assert.Empty(t, res.Charts.Timeline.X)
}

func TestFilterOptions(t *testing.T) {
	opts := FilterOptions(viewRows())
	assert.Equal(t, []string{NotEligible, "TP_01", "TP_03"}, opts.Cohorts)
	assert.Equal(t, []string{"G1", "G2"}, opts.Groups)
}
