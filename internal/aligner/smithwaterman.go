package aligner

import "gonum.org/v1/gonum/mat"

// Scoring constants for the alignment DP.
const (
	matchScore     = 3.0
	mismatchScore  = -1.0
	gapScore       = -2.0
	homophoneScore = 2.0 // two thirds of a full match
)

// smithWaterman runs the canonical local-alignment DP on two rune slices,
// using a gonum mat.Dense scoring matrix. It returns the best score and
// the half-open [start, end) rune range in target that the traceback
// attributes to the query.
func smithWaterman(query, target []rune) (score float64, start, end int) {
	q, w := len(query), len(target)
	if q == 0 || w == 0 {
		return 0, 0, 0
	}

	h := mat.NewDense(q+1, w+1, nil)

	var bestScore float64
	var bestI, bestJ int

	for i := 1; i <= q; i++ {
		for j := 1; j <= w; j++ {
			sub := substitutionScore(query[i-1], target[j-1])
			diag := h.At(i-1, j-1) + sub
			up := h.At(i-1, j) + gapScore
			left := h.At(i, j-1) + gapScore

			best := 0.0
			if diag > best {
				best = diag
			}
			if up > best {
				best = up
			}
			if left > best {
				best = left
			}
			h.Set(i, j, best)

			if best > bestScore {
				bestScore = best
				bestI, bestJ = i, j
			}
		}
	}

	i, j := bestI, bestJ
	for i > 0 && j > 0 && h.At(i, j) > 0 {
		sub := substitutionScore(query[i-1], target[j-1])
		switch {
		case h.At(i, j) == h.At(i-1, j-1)+sub:
			i--
			j--
		case i > 0 && h.At(i, j) == h.At(i-1, j)+gapScore:
			i--
		case j > 0 && h.At(i, j) == h.At(i, j-1)+gapScore:
			j--
		default:
			i, j = 0, 0
		}
	}

	return bestScore, j, bestJ
}

func substitutionScore(a, b rune) float64 {
	switch {
	case a == b:
		return matchScore
	case isHomophone(a, b):
		return homophoneScore
	default:
		return mismatchScore
	}
}
