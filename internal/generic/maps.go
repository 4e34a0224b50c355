package generic

func MapKeys[K comparable, V any](maps ...map[K]V) []K {
	uniqueKeys := make(map[K]struct{})

	for _, m := range maps {
		for k := range m {
			uniqueKeys[k] = struct{}{}
		}
	}

	keys := make([]K, 0, len(uniqueKeys))
	for k := range uniqueKeys {
		keys = append(keys, k)
	}

	return keys
}

// MaxValueKey returns the key holding the largest value. Ties are broken in
// favour of the smallest key, so the result does not depend on map order.
func MaxValueKey[K Ordered, V Ordered](m map[K]V) (K, bool) {
	var (
		best  K
		found bool
	)

	keys := MapKeys(m)
	SortSlice(keys, false)

	for _, k := range keys {
		if !found || m[k] > m[best] {
			best, found = k, true
		}
	}

	return best, found
}
