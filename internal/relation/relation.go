// Package relation computes the changes that turn one set of links into
// another.
package relation

// Diff returns the elements of want missing from have (add) and the
// elements of have missing from want (drop). Duplicates are collapsed and
// the input order is kept.
func Diff[T comparable](have, want []T) (add, drop []T) {
	inHave := make(map[T]bool, len(have))
	for _, v := range have {
		inHave[v] = true
	}
	inWant := make(map[T]bool, len(want))
	for _, v := range want {
		if !inWant[v] && !inHave[v] {
			add = append(add, v)
		}
		inWant[v] = true
	}
	seen := make(map[T]bool, len(have))
	for _, v := range have {
		if !inWant[v] && !seen[v] {
			drop = append(drop, v)
		}
		seen[v] = true
	}
	return add, drop
}
