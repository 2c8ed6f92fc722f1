package cohort

import (
	"math"
	"sort"
)

// DefaultZThreshold flags users three standard deviations above the mean.
const DefaultZThreshold = 3.0

// Outlier is a user whose total cost is unusually high.
type Outlier struct {
	ID     string  `json:"identifier"`
	Cost   float64 `json:"custos"`
	ZScore float64 `json:"z_score"`
}

// DetectOutliers sums cost per user and keeps users whose z-score exceeds
// the threshold, highest cost first. The standard deviation is the
// population one; when it is zero nobody is an outlier.
func DetectOutliers(rows []Row, threshold float64) []Outlier {
	users := sumBy(rows, func(r Row) string { return r.ID })
	out := []Outlier{}
	if len(users) == 0 {
		return out
	}

	n := float64(len(users))
	var total float64
	for _, u := range users {
		total += u.cost
	}
	mean := total / n

	var ss float64
	for _, u := range users {
		d := u.cost - mean
		ss += d * d
	}
	std := math.Sqrt(ss / n)
	if std <= 1e-12*math.Max(1, math.Abs(mean)) {
		return out
	}

	for _, u := range users {
		z := (u.cost - mean) / std
		if z > threshold {
			out = append(out, Outlier{ID: u.key, Cost: u.cost, ZScore: z})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost > out[j].Cost })
	return out
}
