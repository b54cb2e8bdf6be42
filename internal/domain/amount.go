package domain

import "math"

// addAmounts returns a+b for non-negative operands, reporting false when the
// sum does not fit in int64.
func addAmounts(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// mulAmounts returns a*b for non-negative operands, reporting false on overflow.
func mulAmounts(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}
