package value

import "sort"

// Map Vars keep their entries sorted by key. Lookup is binary search;
// set/delete produce new slices, preserving value semantics.

// NewMap builds a map Var from unordered pairs. Later duplicates of a
// key win, matching the literal syntax [k -> a, k -> b].
func NewMap(pairs []Pair) Var {
	out := EmptyMap()
	for _, p := range pairs {
		out = MapSet(out, p.Key, p.Val)
	}
	return out
}

// MapGet looks key up in m.
func MapGet(m, key Var) (Var, bool) {
	i, found := mapSearch(m.m, key)
	if !found {
		return None, false
	}
	return m.m[i].Val, true
}

// MapSet returns m with key bound to val.
func MapSet(m, key, val Var) Var {
	i, found := mapSearch(m.m, key)
	if found {
		out := make([]Pair, len(m.m))
		copy(out, m.m)
		out[i].Val = val
		return newMapPairs(out)
	}
	out := make([]Pair, 0, len(m.m)+1)
	out = append(out, m.m[:i]...)
	out = append(out, Pair{Key: key, Val: val})
	out = append(out, m.m[i:]...)
	return newMapPairs(out)
}

// MapDelete returns m without key; the bool reports whether it was there.
func MapDelete(m, key Var) (Var, bool) {
	i, found := mapSearch(m.m, key)
	if !found {
		return m, false
	}
	out := make([]Pair, 0, len(m.m)-1)
	out = append(out, m.m[:i]...)
	out = append(out, m.m[i+1:]...)
	return newMapPairs(out), true
}

// MapKeys returns the keys in order as a list Var.
func MapKeys(m Var) Var {
	out := make([]Var, len(m.m))
	for i, p := range m.m {
		out[i] = p.Key
	}
	return NewList(out)
}

// MapValues returns the values in key order as a list Var.
func MapValues(m Var) Var {
	out := make([]Var, len(m.m))
	for i, p := range m.m {
		out[i] = p.Val
	}
	return NewList(out)
}

func mapSearch(pairs []Pair, key Var) (int, bool) {
	i := sort.Search(len(pairs), func(i int) bool {
		return keyCompare(pairs[i].Key, key) >= 0
	})
	if i < len(pairs) && keyCompare(pairs[i].Key, key) == 0 {
		return i, true
	}
	return i, false
}
