package commands

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// suggestMaxDistance bounds how far a typo may be from a real name
// before we stop offering it as a suggestion.
const suggestMaxDistance = 3

// maxPathSegments bounds the dotted depth of a typed command. Plugin
// ids are at most three segments deep, plus one for the command.
const maxPathSegments = 4

// matchNames resolves input against a list of candidate names. It
// tries three tiers in order, exact match, prefix match and substring
// match, and stops at the first tier that produces any hits. A single
// hit is a resolution; several hits are returned as an ambiguity.
func matchNames(input string, candidates []string) (string, []string) {
	tiers := []func(cand string) bool{
		func(cand string) bool { return cand == input },
		func(cand string) bool { return strings.HasPrefix(cand, input) },
		func(cand string) bool { return strings.Contains(cand, input) },
	}
	for _, match := range tiers {
		var hits []string
		for _, cand := range candidates {
			if match(cand) {
				hits = append(hits, cand)
			}
		}
		if len(hits) == 1 {
			return hits[0], nil
		}
		if len(hits) > 1 {
			return "", hits
		}
	}
	return "", nil
}

// matchPath resolves dotted input segments against candidate dotted
// paths with the same segment count. Every segment must satisfy the
// same tier for a candidate to count, so "c.pr" matches "core.proxy"
// at the prefix tier.
func matchPath(segs []string, candidates []string) (string, []string) {
	type entry struct {
		path string
		segs []string
	}
	var pool []entry
	for _, cand := range candidates {
		cs := strings.Split(cand, ".")
		if len(cs) == len(segs) {
			pool = append(pool, entry{cand, cs})
		}
	}
	tiers := []func(in, cand string) bool{
		func(in, cand string) bool { return in == cand },
		func(in, cand string) bool { return strings.HasPrefix(cand, in) },
		func(in, cand string) bool { return strings.Contains(cand, in) },
	}
	for _, match := range tiers {
		var hits []string
		for _, cand := range pool {
			ok := true
			for i := range segs {
				if !match(segs[i], cand.segs[i]) {
					ok = false
					break
				}
			}
			if ok {
				hits = append(hits, cand.path)
			}
		}
		if len(hits) == 1 {
			return hits[0], nil
		}
		if len(hits) > 1 {
			return "", hits
		}
	}
	return "", nil
}

// suggestNames ranks candidates by edit distance from the input and
// returns the closest ones, nearest first.
func suggestNames(input string, candidates []string, max int) []string {
	type scored struct {
		name string
		dist int
	}
	var xs []scored
	for _, cand := range candidates {
		if d := levenshtein.Distance(input, cand, nil); d <= suggestMaxDistance {
			xs = append(xs, scored{cand, d})
		}
	}
	sort.SliceStable(xs, func(i, j int) bool { return xs[i].dist < xs[j].dist })
	if max > 0 && len(xs) > max {
		xs = xs[:max]
	}
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.name
	}
	return out
}
