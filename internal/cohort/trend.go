package cohort

import "sort"

// Trend is a least-squares line over monthly post-inclusion cost.
type Trend struct {
	Slope      float64   `json:"slope"`
	Intercept  float64   `json:"intercept"`
	Prediction float64   `json:"prediction"`
	X          []int     `json:"x"`
	Y          []float64 `json:"y"`
	TrendY     []float64 `json:"trend_y"`
}

// MonthlyCost sums cost per positive relative month, sorted by month.
func MonthlyCost(rows []Row) ([]int, []float64) {
	sums := make(map[int]float64)
	for _, r := range rows {
		if r.RelativeMonth == nil || *r.RelativeMonth <= 0 {
			continue
		}
		sums[*r.RelativeMonth] += r.Cost
	}
	months := make([]int, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Ints(months)
	costs := make([]float64, len(months))
	for i, m := range months {
		costs[i] = sums[m]
	}
	return months, costs
}

// LinearTrend fits cost = slope*month + intercept over the positive months
// and predicts the month after the last one. Fewer than two months yield
// nil.
func LinearTrend(rows []Row) *Trend {
	x, y := MonthlyCost(rows)
	if len(x) < 2 {
		return nil
	}

	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += float64(x[i])
		sy += y[i]
	}
	mx, my := sx/n, sy/n

	var num, den float64
	for i := range x {
		dx := float64(x[i]) - mx
		num += dx * (y[i] - my)
		den += dx * dx
	}
	slope := num / den
	intercept := my - slope*mx

	fitted := make([]float64, len(x))
	for i := range x {
		fitted[i] = slope*float64(x[i]) + intercept
	}
	next := float64(x[len(x)-1] + 1)

	return &Trend{
		Slope:      slope,
		Intercept:  intercept,
		Prediction: slope*next + intercept,
		X:          x,
		Y:          y,
		TrendY:     fitted,
	}
}
