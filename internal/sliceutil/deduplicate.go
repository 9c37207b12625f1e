// Package sliceutil provides generic slice helpers.
package sliceutil

// Deduplicate returns the items whose key has not been seen before,
// preserving the order of first occurrence. keyFunc derives the
// comparison key for each item.
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	kept := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
	}
	return kept
}
