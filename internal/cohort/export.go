package cohort

import (
	"strconv"

	"carecohort/pkg/contracts/domain"
)

var consolidatedColumns = []string{
	ConceptIdentifier, ConceptServiceDate, ConceptCost, ConceptQuantity,
	ConceptGroup, ConceptServiceCode, ConceptServiceDescription, ConceptAdmissionKey,
	ConceptInclusionDate, ConceptDeactivationDate, ConceptBirthDate,
	ColumnTenure, ColumnTenureStatus, ColumnCohort,
	ConceptSex, ConceptAge, "faixa_etaria", "momento_mes", "antes_depois",
}

// ConsolidatedTable flattens rows into a text table. Extra columns follow
// the fixed ones in sorted order.
func ConsolidatedTable(rows []Row) domain.Table {
	extraSet := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Extra {
			extraSet[k] = struct{}{}
		}
	}
	extras := sortedKeys(extraSet)

	t := domain.NewTable(append(append([]string(nil), consolidatedColumns...), extras...)...)
	for _, r := range rows {
		cells := []string{
			r.ID, r.ServiceDate, formatFloat(r.Cost), formatFloat(r.Quantity),
			r.Group, r.ServiceCode, r.ServiceDescription, r.AdmissionKey,
			r.InclusionDate, r.DeactivationDate, r.BirthDate,
			formatIntPtr(r.Tenure), r.TenureStatus, r.Cohort,
			r.Sex, strconv.Itoa(r.Age), r.AgeBand, formatIntPtr(r.RelativeMonth), r.BeforeAfter,
		}
		for _, k := range extras {
			cells = append(cells, r.Extra[k])
		}
		t.AppendRow(cells...)
	}
	return t
}

// OutliersTable flattens the outliers into a text table.
func OutliersTable(outliers []Outlier) domain.Table {
	t := domain.NewTable(ConceptIdentifier, ConceptCost, "z_score")
	for _, o := range outliers {
		t.AppendRow(o.ID, formatFloat(o.Cost), formatFloat(o.ZScore))
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatIntPtr(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
