package cohort

import (
	"sort"
	"time"
)

// ConsolidateOptions controls the roster/event join.
type ConsolidateOptions struct {
	// RequireUniqueIDs fails the join when a roster identifier repeats.
	// Otherwise the last roster row with that identifier wins.
	RequireUniqueIDs bool
}

// Consolidate left-joins events onto roster members by normalized
// identifier. Every event yields exactly one row, in event order. Events
// without a roster match keep empty beneficiary fields.
func Consolidate(members []Member, events []Event, opts ConsolidateOptions) ([]Row, error) {
	index := make(map[string]int, len(members))
	var dups map[string]struct{}
	for i, m := range members {
		id := NormalizeID(m.ID)
		if id == "" {
			continue
		}
		if _, ok := index[id]; ok {
			if dups == nil {
				dups = make(map[string]struct{})
			}
			dups[id] = struct{}{}
		}
		index[id] = i
	}
	if opts.RequireUniqueIDs && len(dups) > 0 {
		ids := make([]string, 0, len(dups))
		for id := range dups {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, &DuplicateIdentifierError{IDs: ids}
	}

	rows := make([]Row, len(events))
	for i, ev := range events {
		row := Row{
			ID:                 NormalizeID(ev.ID),
			ServiceDate:        ev.ServiceDate,
			CostRaw:            ev.Cost,
			QuantityRaw:        ev.Quantity,
			Group:              ev.Group,
			ServiceCode:        ev.ServiceCode,
			ServiceDescription: ev.ServiceDescription,
			AdmissionKey:       ev.AdmissionKey,
			AgeRaw:             ev.Age,
			Extra:              copyExtra(ev.Extra),
		}
		if j, ok := index[row.ID]; ok && row.ID != "" {
			attachMember(&row, members[j])
		}
		rows[i] = row
	}
	return rows, nil
}

func attachMember(row *Row, m Member) {
	row.Matched = true
	row.InclusionDate = m.InclusionDate
	row.DeactivationDate = m.DeactivationDate
	row.BirthDate = m.BirthDate
	row.SexRaw = m.Sex
	if row.AgeRaw == "" {
		row.AgeRaw = m.Age
	}
	row.Tenure = m.Tenure.Months
	row.TenureStatus = m.Tenure.Status
	row.Cohort = m.Tenure.Cohort
	for k, v := range m.Extra {
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		if _, taken := row.Extra[k]; !taken {
			row.Extra[k] = v
		}
	}
}

// Enrich fills demographics, the relative month and numeric cost and
// quantity of every row in place.
func Enrich(rows []Row, ref time.Time, hasAge bool) {
	for i := range rows {
		r := &rows[i]
		d := ComputeDemographics(r.SexRaw, r.AgeRaw, r.BirthDate, hasAge, ref)
		r.Sex, r.Age, r.AgeBand = d.Sex, d.Age, d.AgeBand

		w := ComputeRelativeMonth(r.ServiceDate, r.InclusionDate)
		r.RelativeMonth, r.BeforeAfter = w.RelativeMonth, w.Label

		EnsureNumeric(r)
	}
}

func copyExtra(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
