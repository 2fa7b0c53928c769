// Package filter applies a FilterState to property records.
package filter

import (
	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

// Evaluate returns, in the given order, every record for which all active
// criteria of f hold. The input slice is not modified.
func Evaluate(records []model.Record, f model.FilterState, order Order) []model.Record {
	crit := Criteria(f)
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if matchAll(r, crit) {
			out = append(out, r)
		}
	}
	sortRecords(out, order)
	return out
}

// Match reports whether r passes every active criterion of f.
func Match(r model.Record, f model.FilterState) bool {
	return matchAll(r, Criteria(f))
}

func matchAll(r model.Record, crit []Criterion) bool {
	for _, c := range crit {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// CriterionStat counts how many records pass one criterion on its own.
type CriterionStat struct {
	Name   string
	Value  string
	Passed int
}

// Explain reports per-criterion pass counts and the number of records that
// pass all of them.
func Explain(records []model.Record, f model.FilterState) ([]CriterionStat, int) {
	crit := Criteria(f)
	stats := make([]CriterionStat, len(crit))
	for i, c := range crit {
		stats[i] = CriterionStat{Name: c.Name, Value: c.Value}
	}
	all := 0
	for _, r := range records {
		ok := true
		for i, c := range crit {
			if c.Match(r) {
				stats[i].Passed++
			} else {
				ok = false
			}
		}
		if ok {
			all++
		}
	}
	return stats, all
}
