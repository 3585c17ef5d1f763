package compile

import "math"

// allocateProportional distributes a bundle-wide targetTotal minor-unit
// amount across items weighted by their original prices, rounding so the
// sum equals targetTotal exactly. Any rounding residue is carried to the
// highest-priced item; ties are broken by the lowest item index (DESIGN.md
// Open Question 1, resolving spec.md §9's unspecified rounding rule).
//
// prices describes one bundle instance, ordered by ascending item index.
// Returns the allocated minor-unit amount per input position.
func allocateProportional(prices []int64, targetTotal int64) []int64 {
	n := len(prices)
	if n == 0 {
		return nil
	}
	originalTotal := int64(0)
	for _, p := range prices {
		originalTotal += p
	}
	allocated := make([]int64, n)
	if originalTotal == 0 {
		// Degenerate: split evenly, residue to the first position (every
		// price ties at zero, so the lowest index wins).
		base := targetTotal / int64(n)
		for i := range allocated {
			allocated[i] = base
		}
		allocated[0] += targetTotal - base*int64(n)
		return allocated
	}

	sumAllocated := int64(0)
	for i, p := range prices {
		share := math.Round(float64(p) / float64(originalTotal) * float64(targetTotal))
		allocated[i] = int64(share)
		sumAllocated += allocated[i]
	}

	residue := targetTotal - sumAllocated
	if residue != 0 {
		maxIdx := highestPriceLowestIndex(prices)
		allocated[maxIdx] += residue
	}
	return allocated
}

// highestPriceLowestIndex returns the index of the highest value in
// prices, breaking ties by the lowest index.
func highestPriceLowestIndex(prices []int64) int {
	best := 0
	for i := 1; i < len(prices); i++ {
		if prices[i] > prices[best] {
			best = i
		}
	}
	return best
}
