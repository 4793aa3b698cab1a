package results

import (
	"path/filepath"
	"strings"
)

// FilterGrids returns the grids matching filter, in their original order.
//
// filter is a comma-separated list of glob patterns (filepath.Match syntax)
// tested against each grid's full id and name. An empty filter or "*"
// selects every grid.
func FilterGrids(grids []Grid, filter string) []Grid {
	patterns := splitPatterns(filter)
	if len(patterns) == 0 {
		return append([]Grid(nil), grids...)
	}
	var out []Grid
	for _, g := range grids {
		for _, p := range patterns {
			if matchPattern(p, g.FullID) || matchPattern(p, g.Name) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

func splitPatterns(filter string) []string {
	var patterns []string
	for _, p := range strings.Split(filter, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			return nil
		}
		patterns = append(patterns, p)
	}
	return patterns
}

func matchPattern(pattern, s string) bool {
	if pattern == s {
		return true
	}
	matched, _ := filepath.Match(pattern, s)
	return matched
}
