package util

import (
	"iter"
	"slices"
	"sort"
)

// TransformSlice applies the converter to each element in the input slice and returns a new slice.
func TransformSlice[T any, R any](in []T, converter func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = converter(v)
	}
	return out
}

// CanonicalMapIter returns an iterator that yields map entries in sorted key order.
// Constraint names are introspected into maps, and statements built from them
// must come out in the same order on every run.
func CanonicalMapIter[T any](m map[string]T) iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

// GroupDifference returns the groups of a that do not appear in b, keeping a's order.
// Groups compare element-wise, so ["a", "b"] and ["b", "a"] are different groups.
func GroupDifference(a, b [][]string) [][]string {
	var out [][]string
	for _, group := range a {
		found := slices.ContainsFunc(b, func(other []string) bool {
			return slices.Equal(group, other)
		})
		if !found {
			out = append(out, group)
		}
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
