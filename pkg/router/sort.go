package router

import "sort"

// SortRoutes orders routes by the table contract:
//
//  1. type: static < dynamic < catchall
//  2. pattern string, byte-wise
//  3. fewer segments first
//  4. source path, so conflicting files still order deterministically
//
// Manifest ordering derives from this, so it must stay stable across runs.
func SortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return Less(routes[i], routes[j])
	})
}

// Less reports whether a sorts before b in the table contract.
func Less(a, b Route) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	pa, pb := a.Path(), b.Path()
	if pa != pb {
		return pa < pb
	}
	if a.Pattern.Len() != b.Pattern.Len() {
		return a.Pattern.Len() < b.Pattern.Len()
	}
	return a.Rel < b.Rel
}

// Conflict is a set of files that classify to the same pattern.
type Conflict struct {
	Path  string
	Files []string
}

// FindConflicts returns patterns claimed by more than one file, such as
// users.js and users/index.js. Files are listed in table order; the first
// one owns the pattern.
func FindConflicts(routes []Route) []Conflict {
	byPath := make(map[string][]string)
	var order []string
	for _, r := range routes {
		p := r.Path()
		if _, ok := byPath[p]; !ok {
			order = append(order, p)
		}
		byPath[p] = append(byPath[p], r.Rel)
	}

	var conflicts []Conflict
	for _, p := range order {
		if files := byPath[p]; len(files) > 1 {
			conflicts = append(conflicts, Conflict{Path: p, Files: files})
		}
	}
	return conflicts
}
