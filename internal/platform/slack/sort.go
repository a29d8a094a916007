package slack

import (
	"sort"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
)

// sortedKeys returns the map's keys in sorted order for stable rendering.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSetterKeys(m map[string]analysis.SetterMetrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
