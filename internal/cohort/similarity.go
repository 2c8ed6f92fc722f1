package cohort

import (
	"sort"
	"strings"
)

// Scale factors of the weighted ratio.
const (
	unbaseScale        = 0.95
	partialScale       = 0.90
	longPartialScale   = 0.60
	partialLengthRatio = 1.5
	longLengthRatio    = 8.0
)

// WeightedRatio scores the similarity of two strings from 0 to 100. It picks
// the best of the plain ratio, token based ratios and, when the lengths
// differ a lot, substring ratios, each scaled down by how indirect it is.
func WeightedRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := float64(len(ra)), float64(len(rb))
	lenRatio := la / lb
	if lb > la {
		lenRatio = lb / la
	}

	score := ratio(ra, rb)
	if lenRatio < partialLengthRatio {
		return max(score, tokenRatio(a, b)*unbaseScale)
	}

	scale := partialScale
	if lenRatio >= longLengthRatio {
		scale = longPartialScale
	}
	score = max(score, partialRatio(ra, rb)*scale)
	return max(score, partialTokenRatio(a, b)*unbaseScale*scale)
}

// Ratio is the normalized indel similarity of two strings.
func Ratio(a, b string) float64 {
	return ratio([]rune(a), []rune(b))
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(a, b)) / float64(total)
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// partialRatio is the best ratio of the shorter string against every
// window of the longer one, including windows clipped at either end.
func partialRatio(a, b []rune) float64 {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}

	best := 0.0
	for start := -(len(short) - 1); start < len(long); start++ {
		lo := max(start, 0)
		hi := min(start+len(short), len(long))
		if s := ratio(short, long[lo:hi]); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenRatio(a, b string) float64 {
	return max(tokenSortRatio(a, b), tokenSetRatio(a, b))
}

func tokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(strings.Fields(a)), sortedJoin(strings.Fields(b)))
}

func tokenSetRatio(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	common, onlyA, onlyB := splitTokens(sa, sb)
	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := sortedJoin(common)
	diffAB := sortedJoin(onlyA)
	diffBA := sortedJoin(onlyB)
	if sect == "" {
		return Ratio(diffAB, diffBA)
	}
	combinedAB := sect + " " + diffAB
	combinedBA := sect + " " + diffBA
	return max(Ratio(combinedAB, combinedBA), Ratio(sect, combinedAB), Ratio(sect, combinedBA))
}

func partialTokenRatio(a, b string) float64 {
	fa, fb := strings.Fields(a), strings.Fields(b)
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	common, onlyA, onlyB := splitTokens(sa, sb)
	if len(common) > 0 {
		return 100
	}

	best := partialRatio([]rune(sortedJoin(fa)), []rune(sortedJoin(fb)))
	if len(fa) == len(onlyA) && len(fb) == len(onlyB) {
		return best
	}
	return max(best, partialRatio([]rune(sortedJoin(onlyA)), []rune(sortedJoin(onlyB))))
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func splitTokens(a, b map[string]struct{}) (common, onlyA, onlyB []string) {
	for t := range a {
		if _, ok := b[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range b {
		if _, ok := a[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	return common, onlyA, onlyB
}

func sortedJoin(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
