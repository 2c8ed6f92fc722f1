package cohort

import (
	"fmt"
	"time"
)

// Tenure is the program tenure of one beneficiary.
type Tenure struct {
	Months *int   `json:"tempo_programa"`
	Status string `json:"tempo_programa_status"`
	Cohort string `json:"grupos"`
}

// Eligible reports whether the tenure status is OK.
func (t Tenure) Eligible() bool {
	return t.Status == StatusOK
}

// ComputeTenure derives months in program from the inclusion date to the
// end month. The end month is the deactivation month when it parses and the
// reference month otherwise. Only the month component of the dates counts.
func ComputeTenure(inclusion, deactivation string, ref time.Time) Tenure {
	inc, ok := ParseDate(inclusion)
	if !ok {
		return Tenure{Status: StatusNoInclusionDate, Cohort: NotEligible}
	}

	end := ReferenceMonth(ref)
	if d, ok := ParseDate(deactivation); ok {
		end = ReferenceMonth(d)
	}

	if !ReferenceMonth(inc).Before(end) {
		return Tenure{Status: StatusInclusionNotComputable, Cohort: NotEligible}
	}

	months := monthsBetween(inc, end)
	return Tenure{
		Months: intPtr(months),
		Status: StatusOK,
		Cohort: CohortLabel(months),
	}
}

// ComputeTenures maps ComputeTenure over the roster.
func ComputeTenures(roster []Beneficiary, ref time.Time) []Tenure {
	out := make([]Tenure, len(roster))
	for i, b := range roster {
		out[i] = ComputeTenure(b.InclusionDate, b.DeactivationDate, ref)
	}
	return out
}

// BuildMembers attaches the computed tenure to every roster row.
func BuildMembers(roster []Beneficiary, ref time.Time) []Member {
	tenures := ComputeTenures(roster, ref)
	out := make([]Member, len(roster))
	for i, b := range roster {
		out[i] = Member{Beneficiary: b, Tenure: tenures[i]}
	}
	return out
}

// CohortLabel formats a tenure in months as TP_NN.
func CohortLabel(months int) string {
	return fmt.Sprintf("TP_%02d", months)
}

// Window places an event relative to its beneficiary's inclusion date.
type Window struct {
	RelativeMonth *int   `json:"momento_mes"`
	Label         string `json:"antes_depois"`
}

// ComputeRelativeMonth returns the signed number of 30-day months between
// inclusion and the event, rounded away from zero. An event on the inclusion
// day is month 0. Either date missing yields an empty window.
func ComputeRelativeMonth(eventDate, inclusionDate string) Window {
	ev, ok := ParseDate(eventDate)
	if !ok {
		return Window{}
	}
	inc, ok := ParseDate(inclusionDate)
	if !ok {
		return Window{}
	}

	delta := daysBetween(inc, ev)
	switch {
	case delta == 0:
		return Window{RelativeMonth: intPtr(0), Label: LabelZeroMonth}
	case delta > 0:
		return Window{RelativeMonth: intPtr((delta + 29) / 30), Label: LabelAfter}
	default:
		return Window{RelativeMonth: intPtr(-((-delta + 29) / 30)), Label: LabelBefore}
	}
}
