package orchestrator

import "strings"

// matchPattern reports whether name matches a pattern using the selection
// DSL's two wildcards: "*" matches any run of characters (including none),
// "?" matches exactly one character. Matching is a small recursive
// descent rather than path.Match, since path.Match treats "/" specially
// in a way table identifiers never need.
func matchPattern(pattern, name string) bool {
	return matchAt(pattern, name, 0, 0)
}

func matchAt(pattern, name string, pi, ni int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			// Collapse consecutive '*' and try every split point.
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for k := ni; k <= len(name); k++ {
				if matchAt(pattern, name, pi, k) {
					return true
				}
			}
			return false
		case '?':
			if ni >= len(name) {
				return false
			}
			pi++
			ni++
		default:
			if ni >= len(name) || pattern[pi] != name[ni] {
				return false
			}
			pi++
			ni++
		}
	}
	return ni == len(name)
}

// ResolveSelection computes the effective table set: start from all
// source tables, intersect with include patterns (a table matching any
// include pattern is kept; an empty include list keeps everything),
// subtract exclude patterns. Both lists accept literal names or glob
// patterns ("*"/"?"); unknown names in either list are not themselves
// an error — the orchestrator reports an include pattern that matched
// nothing (found with UnmatchedPatterns) as an event.
func ResolveSelection(allTables []string, include, exclude []string) []string {
	var selected []string
	for _, t := range allTables {
		if len(include) > 0 && !matchesAny(include, t) {
			continue
		}
		if matchesAny(exclude, t) {
			continue
		}
		selected = append(selected, t)
	}
	return selected
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?") {
			if matchPattern(p, name) {
				return true
			}
		} else if p == name {
			return true
		}
	}
	return false
}

// UnmatchedPatterns returns include patterns that matched zero tables in
// allTables, for the orchestrator to report as warnings.
func UnmatchedPatterns(allTables []string, include []string) []string {
	var unmatched []string
	for _, p := range include {
		matched := false
		for _, t := range allTables {
			if (strings.ContainsAny(p, "*?") && matchPattern(p, t)) || p == t {
				matched = true
				break
			}
		}
		if !matched {
			unmatched = append(unmatched, p)
		}
	}
	return unmatched
}
