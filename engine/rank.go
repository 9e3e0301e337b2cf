package engine

import (
	"slices"
	"strings"
)

// Rank sorts results in place, best first: effective value descending, then
// nominal percentage descending, then card name, then card ID. The order is
// total, so it does not depend on the input order.
func Rank(results []Result) {
	slices.SortFunc(results, compareResults)
}

func compareResults(a, b Result) int {
	if c := b.EffectiveValue().Cmp(a.EffectiveValue()); c != 0 {
		return c
	}
	if c := b.Percentage.Cmp(a.Percentage); c != 0 {
		return c
	}
	if c := strings.Compare(a.Card.Name, b.Card.Name); c != 0 {
		return c
	}
	return strings.Compare(string(a.Card.ID), string(b.Card.ID))
}

// MilesRanking returns the results that earn miles, cheapest dollars per mile
// first. Ties keep their Rank order. The input is not modified.
func MilesRanking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.MilesReturn != nil {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Result) int {
		return a.MilesReturn.Cmp(*b.MilesReturn)
	})
	return out
}
