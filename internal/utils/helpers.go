package utils

// Set is a membership set of comparable values.
type Set[T comparable] map[T]struct{}

// SliceToSet converts a slice of any comparable type to a Set. Duplicates collapse.
func SliceToSet[T comparable](slice []T) Set[T] {
	set := make(Set[T], len(slice))
	for _, item := range slice {
		set[item] = struct{}{}
	}
	return set
}

// Contains reports whether item is in the set. A nil set contains nothing.
func (s Set[T]) Contains(item T) bool {
	_, ok := s[item]
	return ok
}
