package comparator

import "sort"

// KeySet is a set of normalized keys.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from the given keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add inserts a key into the set.
func (s KeySet) Add(key string) {
	s[key] = struct{}{}
}

// Contains reports whether the set holds key.
func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Union returns a new set containing keys from both sets.
func (s KeySet) Union(other KeySet) KeySet {
	out := make(KeySet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Intersect returns a new set with keys present in both sets.
func (s KeySet) Intersect(other KeySet) KeySet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(KeySet)
	for k := range small {
		if _, ok := large[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Difference returns a new set with keys in s that are not in other.
func (s KeySet) Difference(other KeySet) KeySet {
	out := make(KeySet)
	for k := range s {
		if _, ok := other[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Sorted returns the set's keys in lexical order.
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
