package vocab

import "math/rand"

// Sample picks up to n elements without replacement. The input is not
// modified.
func Sample[T any](items []T, n int, rng *rand.Rand) []T {
	if n > len(items) {
		n = len(items)
	}
	if n <= 0 {
		return nil
	}
	src := make([]T, len(items))
	copy(src, items)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(src)-i)
		src[i], src[j] = src[j], src[i]
	}
	return src[:n]
}
