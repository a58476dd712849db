// Package pipeline merges, filters and aggregates the alerts of one instance
// into sensor-facing results.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// Merge concatenates per-source alert lists in source order.
func Merge(lists ...[]model.Alert) []model.Alert {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]model.Alert, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func dedupeKey(a model.Alert) string {
	id := a.MasterID
	if id == "" {
		id = a.ID
	}
	return string(a.WarningType) + ":" + id
}

// Dedupe merges alerts sharing a warning type and master id. The merged alert
// takes the position of the first occurrence and the fields of the highest
// level record; merged municipality lists are sorted and unique.
func Dedupe(alerts []model.Alert) []model.Alert {
	out := make([]model.Alert, 0, len(alerts))
	index := make(map[string]int, len(alerts))
	for _, a := range alerts {
		key := dedupeKey(a)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, a)
			continue
		}
		municipalities := uniqueSorted(append(append([]string{}, out[i].Municipalities...), a.Municipalities...))
		if a.Level > out[i].Level {
			out[i] = a
		}
		out[i].Municipalities = municipalities
	}
	return out
}

func uniqueSorted(s []string) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(s))
	for _, v := range s {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Active drops green alerts.
func Active(alerts []model.Alert) []model.Alert {
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Level > model.LevelGreen {
			out = append(out, a)
		}
	}
	return out
}

// ParseFilter splits a comma separated municipality filter into lower-cased
// terms. Blank terms are dropped; nil means no filtering.
func ParseFilter(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// FilterMunicipalities keeps alerts with a municipality containing any term.
// Alerts without municipalities are matched on their areas.
func FilterMunicipalities(alerts []model.Alert, terms []string) []model.Alert {
	if len(terms) == 0 {
		return alerts
	}
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		names := a.Municipalities
		if len(names) == 0 {
			names = a.Areas
		}
		if matchesAny(names, terms) {
			out = append(out, a)
		}
	}
	return out
}

func matchesAny(names, terms []string) bool {
	for _, n := range names {
		n = strings.ToLower(n)
		for _, t := range terms {
			if strings.Contains(n, t) {
				return true
			}
		}
	}
	return false
}

// HighestLevel returns the maximum level, or green for an empty list.
func HighestLevel(alerts []model.Alert) model.Level {
	highest := model.LevelGreen
	for _, a := range alerts {
		if a.Level > highest {
			highest = a.Level
		}
	}
	return highest
}

// Annotate returns copies of the alerts with their status at now.
func Annotate(alerts []model.Alert, now time.Time) []model.Alert {
	out := make([]model.Alert, len(alerts))
	for i, a := range alerts {
		a.Status = a.StatusAt(now)
		out[i] = a
	}
	return out
}

// SortByLevel orders alerts by level descending, then by start time descending.
func SortByLevel(alerts []model.Alert) []model.Alert {
	out := make([]model.Alert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].ValidFrom.After(out[j].ValidFrom)
	})
	return out
}
