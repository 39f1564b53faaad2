package util

import (
	"math"

	"github.com/hbollon/go-edlib"
)

// Scorer rates the similarity of two normalized keys on a 0-100 scale.
type Scorer func(a, b string) float64

// Ratio is the normalized Indel similarity: 100 * 2*LCS / (len(a)+len(b)),
// computed over runes.
func Ratio(a, b string) float64 {
	la, lb := RuneLen(a), RuneLen(b)
	if la == 0 && lb == 0 {
		return 100
	}
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	lcs := edlib.LCS(a, b)
	score := 100 * float64(2*lcs) / float64(la+lb)
	return math.Round(score*100) / 100
}
