package services

import (
	"sort"
	"strings"

	"github.com/quantzone/zonekit/internal/models"
)

// analyzeSequence builds label-to-label transition counts over zones in
// chronological order, plus best-effort recurring label patterns (n-grams of
// length 2 and 3 occurring at least twice).
func analyzeSequence(zones []*models.Zone) *models.SequenceReport {
	if len(zones) == 0 {
		return nil
	}

	ordered := make([]*models.Zone, len(zones))
	copy(ordered, zones)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartIndex < ordered[j].StartIndex })

	transitions := make(map[string]map[string]int)
	for i := 1; i < len(ordered); i++ {
		from, to := ordered[i-1].Label, ordered[i].Label
		if transitions[from] == nil {
			transitions[from] = make(map[string]int)
		}
		transitions[from][to]++
	}

	labels := make([]string, len(ordered))
	for i, zone := range ordered {
		labels[i] = zone.Label
	}

	return &models.SequenceReport{
		Transitions: transitions,
		Patterns:    recurringPatterns(labels, 2),
	}
}

// recurringPatterns extracts label n-grams (length 2 and 3) occurring at
// least minSupport times, most frequent first.
func recurringPatterns(labels []string, minSupport int) []models.PatternCount {
	counts := make(map[string]int)
	for _, n := range []int{2, 3} {
		for i := 0; i+n <= len(labels); i++ {
			counts[strings.Join(labels[i:i+n], "\x00")]++
		}
	}

	var patterns []models.PatternCount
	for key, count := range counts {
		if count < minSupport {
			continue
		}
		patterns = append(patterns, models.PatternCount{
			Labels: strings.Split(key, "\x00"),
			Count:  count,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return strings.Join(patterns[i].Labels, ",") < strings.Join(patterns[j].Labels, ",")
	})
	return patterns
}
