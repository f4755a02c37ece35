package avl

import "iter"

// Set is an ordered set of byte-slice keys. It shares the Map
// implementation and leaves the value slots empty.
type Set struct {
	m *Map[struct{}]
}

// NewSet returns an empty set ordered by cmp. A nil cmp orders keys
// bytewise.
func NewSet(cmp Compare) *Set {
	return &Set{m: NewMap[struct{}](cmp)}
}

// Insert adds key and reports whether it was already present. Inserting a
// present key is a no-op.
func (s *Set) Insert(key []byte) (present bool) {
	if s.m.Contains(key) {
		return true
	}
	s.m.Insert(key, struct{}{})
	return false
}

func (s *Set) Contains(key []byte) bool {
	return s.m.Contains(key)
}

// Remove deletes key and reports whether it was present.
func (s *Set) Remove(key []byte) bool {
	_, ok := s.m.Remove(key)
	return ok
}

func (s *Set) Len() int {
	return s.m.Len()
}

func (s *Set) Compare() Compare {
	return s.m.Compare()
}

func (s *Set) Clear() {
	s.m.Clear(nil)
}

// All yields the members in ascending order. The yielded slices belong to
// the set and must not be modified.
func (s *Set) All() iter.Seq[[]byte] {
	return s.m.Keys()
}

// Clone returns an independent copy of s with the same comparator.
func (s *Set) Clone() *Set {
	out := NewSet(s.Compare())
	for k := range s.All() {
		out.m.Insert(k, struct{}{})
	}
	return out
}

// Union returns a fresh set holding every member of a or b, ordered by a's
// comparator. Neither operand is modified.
func Union(a, b *Set) *Set {
	out := a.Clone()
	for k := range b.All() {
		out.Insert(k)
	}
	return out
}

// Intersection returns a fresh set holding the members present in both a
// and b, ordered by a's comparator.
func Intersection(a, b *Set) *Set {
	small, large := a, b
	if b.Len() < a.Len() {
		small, large = b, a
	}
	out := NewSet(a.Compare())
	for k := range small.All() {
		if large.Contains(k) {
			out.m.Insert(k, struct{}{})
		}
	}
	return out
}

// Difference returns a fresh set holding the members of a that are not in
// b.
func Difference(a, b *Set) *Set {
	out := NewSet(a.Compare())
	for k := range a.All() {
		if !b.Contains(k) {
			out.m.Insert(k, struct{}{})
		}
	}
	return out
}
