package cohort

// Measures aggregates cost and utilization over a set of rows. Ratios are
// nil when their denominator is not positive.
type Measures struct {
	Cost         float64  `json:"custo"`
	Quantity     float64  `json:"qtde_usada"`
	Users        int      `json:"n_usuarios"`
	CostPerUnit  *float64 `json:"custo_medio_unitario"`
	UsagePerUser *float64 `json:"media_utilizacao_usuario"`
	CostPerUser  *float64 `json:"custo_medio_usuario"`
}

// AggregateMeasures sums cost and quantity and counts distinct users.
func AggregateMeasures(rows []Row) Measures {
	var m Measures
	users := make(map[string]struct{})
	for _, r := range rows {
		m.Cost += r.Cost
		m.Quantity += r.Quantity
		if r.ID != "" {
			users[r.ID] = struct{}{}
		}
	}
	m.Users = len(users)
	m.CostPerUnit = safeDiv(m.Cost, m.Quantity)
	m.UsagePerUser = safeDiv(m.Quantity, float64(m.Users))
	m.CostPerUser = safeDiv(m.Cost, float64(m.Users))
	return m
}

func safeDiv(num, den float64) *float64 {
	if den <= 0 {
		return nil
	}
	v := num / den
	return &v
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// PivotRow is one line of the before/after comparison.
type PivotRow struct {
	Period            string  `json:"Momento"`
	Cost              float64 `json:"Custos"`
	ActiveUsers       float64 `json:"N. Usuários com Utilizações"`
	CostPerActiveUser float64 `json:"Custo Médio Usuário (com utilização)"`
	BaseUsers         float64 `json:"N. Usuários Base total"`
	CostPerBaseUser   float64 `json:"Custo Médio Usuários Total"`
}

// BeforeAfterPivot compares the Antes and Depois rows. The first two rows
// are the periods; a Diferença row (Depois minus Antes) and a % row follow.
// baseUsers is the eligible cohort size; when it is not positive the number
// of active users of the period stands in for it.
func BeforeAfterPivot(rows []Row, baseUsers int) []PivotRow {
	out := make([]PivotRow, 0, 4)
	for _, label := range []string{LabelBefore, LabelAfter} {
		var period []Row
		for _, r := range rows {
			if r.BeforeAfter == label {
				period = append(period, r)
			}
		}
		m := AggregateMeasures(period)

		total := float64(baseUsers)
		if baseUsers <= 0 {
			total = float64(m.Users)
		}
		perBase := 0.0
		if total > 0 {
			perBase = m.Cost / total
		}
		out = append(out, PivotRow{
			Period:            label,
			Cost:              m.Cost,
			ActiveUsers:       float64(m.Users),
			CostPerActiveUser: valueOr(m.CostPerUser, 0),
			BaseUsers:         total,
			CostPerBaseUser:   perBase,
		})
	}

	if len(out) == 2 {
		out = append(out, pivotDifference(out[0], out[1]), pivotPercent(out[0], out[1]))
	}
	return out
}

func pivotDifference(before, after PivotRow) PivotRow {
	return PivotRow{
		Period:            LabelDifference,
		Cost:              after.Cost - before.Cost,
		ActiveUsers:       after.ActiveUsers - before.ActiveUsers,
		CostPerActiveUser: after.CostPerActiveUser - before.CostPerActiveUser,
		CostPerBaseUser:   after.CostPerBaseUser - before.CostPerBaseUser,
	}
}

func pivotPercent(before, after PivotRow) PivotRow {
	pct := func(a, d float64) float64 {
		if a == 0 {
			return 0
		}
		return (d/a - 1) * 100
	}
	return PivotRow{
		Period:            LabelPercent,
		Cost:              pct(before.Cost, after.Cost),
		ActiveUsers:       pct(before.ActiveUsers, after.ActiveUsers),
		CostPerActiveUser: pct(before.CostPerActiveUser, after.CostPerActiveUser),
		CostPerBaseUser:   pct(before.CostPerBaseUser, after.CostPerBaseUser),
	}
}
