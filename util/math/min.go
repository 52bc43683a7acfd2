package math

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
