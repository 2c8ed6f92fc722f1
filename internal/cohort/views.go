package cohort

import "sort"

// Period selects events by their position relative to the tenure window.
type Period string

const (
	PeriodInside  Period = "dentro"
	PeriodOutside Period = "fora"
	PeriodBoth    Period = "ambos"
)

// DefaultWindowCapMonths caps the tenure window used by Period.
const DefaultWindowCapMonths = 24

// Filters restricts the consolidated rows of a read view.
type Filters struct {
	// Period defaults to PeriodInside. Unknown values behave as inside.
	Period Period `json:"periodo"`
	// IncludeZeroMonth keeps events of relative month 0.
	IncludeZeroMonth bool `json:"momento_zero"`
	// WindowCapMonths bounds every beneficiary's window. Use DefaultFilters
	// to start from the default of 24.
	WindowCapMonths int `json:"janela"`
	// CohortLabels keeps only the listed TP_NN cohorts when non-empty.
	CohortLabels []string `json:"grupos,omitempty"`
	// Groups keeps only the listed assistential groups when non-empty.
	Groups []string `json:"agrupamento_assistencial,omitempty"`
}

// DefaultFilters returns the filters of an unparameterized dashboard query.
func DefaultFilters() Filters {
	return Filters{Period: PeriodInside, WindowCapMonths: DefaultWindowCapMonths}
}

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	Lives           int     `json:"lives"`
	LivesWithEvents int     `json:"lives_with_events"`
	TotalCost       float64 `json:"total_cost"`
	PMPM            float64 `json:"pmpm"`
	Prediction      float64 `json:"prediction"`
}

// Series is a chart line.
type Series struct {
	X []int     `json:"x"`
	Y []float64 `json:"y"`
}

// Charts groups the dashboard series.
type Charts struct {
	Timeline Series `json:"timeline"`
	Trend    *Trend `json:"trend"`
}

// DemographicRecord describes one life of the base cohort.
type DemographicRecord struct {
	ID        string `json:"identifier"`
	Sex       string `json:"sexo"`
	Age       int    `json:"idade"`
	AgeBand   string `json:"faixa_etaria"`
	Tenure    int    `json:"tempo_programa"`
	Cohort    string `json:"grupos"`
	BirthDate string `json:"nascimento,omitempty"`
}

// Results is the filtered dashboard view of one round.
type Results struct {
	KPIs        KPIs                `json:"kpis"`
	Charts      Charts              `json:"charts"`
	Comparative []PivotRow          `json:"comparative"`
	RawData     []DemographicRecord `json:"raw_data"`
}

// Options lists the values available to the categorical filters.
type Options struct {
	Cohorts []string `json:"grupos"`
	Groups  []string `json:"agrupamento_assistencial"`
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func allowed(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}

// BaseCohort returns the first row of every eligible life, restricted to
// the cohort filter. Group filters do not apply: the base counts lives,
// not events.
func BaseCohort(rows []Row, f Filters) []Row {
	cohorts := toSet(f.CohortLabels)
	seen := make(map[string]struct{})
	var base []Row
	for _, r := range rows {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if r.Eligible() && allowed(cohorts, r.Cohort) {
			base = append(base, r)
		}
	}
	return base
}

// FilterEvents applies the eligibility, cohort, group, zero-month and
// period restrictions in that order.
func FilterEvents(rows []Row, f Filters) []Row {
	cohorts := toSet(f.CohortLabels)
	groups := toSet(f.Groups)
	capMonths := f.WindowCapMonths

	var out []Row
	for _, r := range rows {
		if !r.Eligible() || !allowed(cohorts, r.Cohort) || !allowed(groups, r.Group) {
			continue
		}
		if !f.IncludeZeroMonth && r.RelativeMonth != nil && *r.RelativeMonth == 0 {
			continue
		}
		if f.Period == PeriodBoth {
			out = append(out, r)
			continue
		}
		inside := insideWindow(r, capMonths)
		if f.Period == PeriodOutside {
			if !inside {
				out = append(out, r)
			}
		} else if inside {
			out = append(out, r)
		}
	}
	return out
}

// insideWindow compares the event month with the beneficiary's tenure,
// capped. Unknown months count as 0 and unknown tenures as an empty window.
func insideWindow(r Row, capMonths int) bool {
	window := 0
	if r.Tenure != nil && *r.Tenure > 0 {
		window = *r.Tenure
	}
	window = min(window, capMonths)
	month := 0
	if r.RelativeMonth != nil {
		month = *r.RelativeMonth
	}
	if month < 0 {
		month = -month
	}
	return month <= window
}

// BuildResults computes the dashboard view of the rows under the filters.
// The trend is the one stored with the run; only its prediction feeds the
// KPIs.
func BuildResults(rows []Row, trend *Trend, f Filters) Results {
	base := BaseCohort(rows, f)
	events := FilterEvents(rows, f)

	lives := make(map[string]struct{})
	var cost float64
	for _, r := range events {
		cost += r.Cost
		if r.ID != "" {
			lives[r.ID] = struct{}{}
		}
	}

	res := Results{
		KPIs: KPIs{
			Lives:           len(base),
			LivesWithEvents: len(lives),
			TotalCost:       cost,
		},
		Charts:      Charts{Trend: trend},
		Comparative: BeforeAfterPivot(events, len(base)),
		RawData:     make([]DemographicRecord, 0, len(base)),
	}
	if len(base) > 0 {
		res.KPIs.PMPM = cost / float64(len(base))
	}
	if trend != nil {
		res.KPIs.Prediction = trend.Prediction
	}

	x, y := MonthlyCost(events)
	res.Charts.Timeline = Series{X: x, Y: y}

	for _, r := range base {
		res.RawData = append(res.RawData, demographicRecord(r))
	}
	return res
}

func demographicRecord(r Row) DemographicRecord {
	rec := DemographicRecord{
		ID:        r.ID,
		Sex:       orDefault(r.Sex, NotInformed),
		Age:       r.Age,
		AgeBand:   orDefault(r.AgeBand, NotInformed),
		Cohort:    orDefault(r.Cohort, NotInformed),
		BirthDate: r.BirthDate,
	}
	if r.Tenure != nil {
		rec.Tenure = *r.Tenure
	}
	return rec
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FilterOptions lists the distinct cohort labels and groups, sorted.
func FilterOptions(rows []Row) Options {
	cohorts := make(map[string]struct{})
	groups := make(map[string]struct{})
	for _, r := range rows {
		if r.Cohort != "" {
			cohorts[r.Cohort] = struct{}{}
		}
		if r.Group != "" {
			groups[r.Group] = struct{}{}
		}
	}
	return Options{Cohorts: sortedKeys(cohorts), Groups: sortedKeys(groups)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
