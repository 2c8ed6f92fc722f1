package cohort

import "sort"

// Ranking sizes of the cost driver breakdown.
const (
	TopGroups        = 15
	TopProcedures    = 20
	TopBeneficiaries = 20
)

// GroupDriver is the cost of one assistential group.
type GroupDriver struct {
	Group string  `json:"agrupamento_assistencial"`
	Cost  float64 `json:"custos"`
	Share float64 `json:"share"`
}

// ProcedureDriver is the cost and quantity of one service description.
type ProcedureDriver struct {
	Description string  `json:"descricao_servico"`
	Cost        float64 `json:"custos"`
	Quantity    float64 `json:"qtde_usada"`
}

// BeneficiaryDriver is the total cost of one user.
type BeneficiaryDriver struct {
	ID    string  `json:"identifier"`
	Cost  float64 `json:"custos"`
	Share float64 `json:"share"`
}

// DriverBreakdown ranks the contributors to cost.
type DriverBreakdown struct {
	Groups        []GroupDriver       `json:"groups"`
	Procedures    []ProcedureDriver   `json:"procedures"`
	Beneficiaries []BeneficiaryDriver `json:"beneficiaries"`
}

type costSum struct {
	key      string
	cost     float64
	quantity float64
}

// sumBy groups rows by a non-empty key and sorts by cost descending, key
// ascending on ties.
func sumBy(rows []Row, key func(Row) string) []costSum {
	pos := make(map[string]int)
	var sums []costSum
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		i, ok := pos[k]
		if !ok {
			i = len(sums)
			pos[k] = i
			sums = append(sums, costSum{key: k})
		}
		sums[i].cost += r.Cost
		sums[i].quantity += r.Quantity
	}
	sort.SliceStable(sums, func(i, j int) bool {
		if sums[i].cost != sums[j].cost {
			return sums[i].cost > sums[j].cost
		}
		return sums[i].key < sums[j].key
	})
	return sums
}

// CostDrivers ranks cost by group, by procedure and by beneficiary. Group
// shares are relative to the cost of all groups; beneficiary shares are
// relative to the cost of the ranked beneficiaries only.
func CostDrivers(rows []Row) DriverBreakdown {
	out := DriverBreakdown{
		Groups:        []GroupDriver{},
		Procedures:    []ProcedureDriver{},
		Beneficiaries: []BeneficiaryDriver{},
	}

	groups := sumBy(rows, func(r Row) string { return r.Group })
	var groupTotal float64
	for _, g := range groups {
		groupTotal += g.cost
	}
	for i, g := range groups {
		if i == TopGroups {
			break
		}
		share := 0.0
		if groupTotal > 0 {
			share = g.cost / groupTotal
		}
		out.Groups = append(out.Groups, GroupDriver{Group: g.key, Cost: g.cost, Share: share})
	}

	procs := sumBy(rows, func(r Row) string { return r.ServiceDescription })
	for i, p := range procs {
		if i == TopProcedures {
			break
		}
		out.Procedures = append(out.Procedures, ProcedureDriver{Description: p.key, Cost: p.cost, Quantity: p.quantity})
	}

	users := sumBy(rows, func(r Row) string { return r.ID })
	if len(users) > TopBeneficiaries {
		users = users[:TopBeneficiaries]
	}
	var rankedTotal float64
	for _, u := range users {
		rankedTotal += u.cost
	}
	for _, u := range users {
		share := 0.0
		if rankedTotal > 0 {
			share = u.cost / rankedTotal
		}
		out.Beneficiaries = append(out.Beneficiaries, BeneficiaryDriver{ID: u.key, Cost: u.cost, Share: share})
	}
	return out
}
