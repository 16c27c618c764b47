package utils

import "strings"

// ParseQueryList accepts both repeated and comma-separated values and drops
// blanks:
//
//	?areaIds=a,b          → ["a","b"]
//	?areaIds=a&areaIds=b  → ["a","b"]
//	?areaIds=             → nil
func ParseQueryList(q map[string][]string, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
