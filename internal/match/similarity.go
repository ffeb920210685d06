package match

// Similarity returns the Jaccard coefficient |a∩b| / |a∪b| of two keyword sets.
// It is 0 when either set is empty.
func Similarity(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if large.Has(tok) {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
