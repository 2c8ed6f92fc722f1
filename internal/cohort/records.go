package cohort

import (
	"strings"

	"carecohort/pkg/contracts/domain"
)

var rosterFields = map[string]bool{
	ConceptIdentifier:       true,
	ConceptInclusionDate:    true,
	ConceptDeactivationDate: true,
	ConceptBirthDate:        true,
	ConceptSex:              true,
	ConceptAge:              true,
}

var eventFields = map[string]bool{
	ConceptIdentifier:         true,
	ConceptServiceDate:        true,
	ConceptCost:               true,
	ConceptQuantity:           true,
	ConceptGroup:              true,
	ConceptServiceCode:        true,
	ConceptServiceDescription: true,
	ConceptAdmissionKey:       true,
	ConceptAge:                true,
}

// BeneficiariesFromTable reads roster records from a mapped table. Columns
// that are not concepts go to Extra.
func BeneficiariesFromTable(t domain.Table) []Beneficiary {
	col := columnLookup(t)
	out := make([]Beneficiary, t.Len())
	for i := range t.Rows {
		out[i] = Beneficiary{
			ID:               NormalizeID(col(i, ConceptIdentifier)),
			InclusionDate:    col(i, ConceptInclusionDate),
			DeactivationDate: col(i, ConceptDeactivationDate),
			BirthDate:        col(i, ConceptBirthDate),
			Sex:              col(i, ConceptSex),
			Age:              col(i, ConceptAge),
			Extra:            extraCells(t, i, rosterFields),
		}
	}
	return out
}

// EventsFromTable reads ledger records from a mapped table.
func EventsFromTable(t domain.Table) []Event {
	col := columnLookup(t)
	out := make([]Event, t.Len())
	for i := range t.Rows {
		out[i] = Event{
			ID:                 NormalizeID(col(i, ConceptIdentifier)),
			ServiceDate:        col(i, ConceptServiceDate),
			Cost:               col(i, ConceptCost),
			Quantity:           col(i, ConceptQuantity),
			Group:              strings.TrimSpace(col(i, ConceptGroup)),
			ServiceCode:        strings.TrimSpace(col(i, ConceptServiceCode)),
			ServiceDescription: strings.TrimSpace(col(i, ConceptServiceDescription)),
			AdmissionKey:       strings.TrimSpace(col(i, ConceptAdmissionKey)),
			Age:                col(i, ConceptAge),
			Extra:              extraCells(t, i, eventFields),
		}
	}
	return out
}

// NormalizeID is the join key of an identifier cell.
func NormalizeID(s string) string {
	return strings.TrimSpace(s)
}

func columnLookup(t domain.Table) func(row int, concept string) string {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return func(row int, concept string) string {
		j, ok := idx[concept]
		if !ok {
			return ""
		}
		return t.Cell(row, j)
	}
}

func extraCells(t domain.Table, row int, known map[string]bool) map[string]string {
	var extra map[string]string
	for j, c := range t.Columns {
		if known[c] || c == "" {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[c] = t.Cell(row, j)
	}
	return extra
}
