package set

// Set is a set of comparable values. Not safe for concurrent use.
type Set[T comparable] map[T]struct{}

// WithCapacity creates an empty set with room for n values.
func WithCapacity[T comparable](n int) Set[T] {
	return make(Set[T], n)
}

// Insert adds the value and reports whether it was not in the set yet.
func (s Set[T]) Insert(val T) bool {
	if s.Has(val) {
		return false
	}

	s[val] = struct{}{}

	return true
}

func (s Set[T]) Has(val T) bool {
	_, ok := s[val]
	return ok
}
