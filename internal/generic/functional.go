package generic

// Filter returns a new slice holding the elements of s for which f is true.
func Filter[T any](s []T, f func(T) bool) []T {
	var res []T

	for _, v := range s {
		if f(v) {
			res = append(res, v)
		}
	}

	return res
}

// Take returns at most n first elements of s.
func Take[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}

	if len(s) > n {
		return s[:n]
	}

	return s
}
