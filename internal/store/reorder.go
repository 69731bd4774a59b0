package store

import (
	"sort"
)

type sibling struct {
	ID   string
	Rank string
}

func sortSiblings(sibs []sibling) {
	sort.SliceStable(sibs, func(i, j int) bool {
		ri, rj := normRank(sibs[i].Rank), normRank(sibs[j].Rank)
		if ri != rj {
			return ri < rj
		}
		return sibs[i].ID < sibs[j].ID
	})
}

// planMove returns the rank updates that move sibs[from] to position to.
// sibs must be in display order. Only the moved row is rewritten when its
// new neighbours leave room; otherwise the smallest window around the new
// position whose outer bounds are usable is re-ranked.
func planMove(sibs []sibling, from, to int) (map[string]string, error) {
	out := map[string]string{}
	if from == to {
		return out, nil
	}
	final := make([]sibling, 0, len(sibs))
	for i, s := range sibs {
		if i != from {
			final = append(final, s)
		}
	}
	final = append(final[:to], append([]sibling{sibs[from]}, final[to:]...)...)

	lower, upper := bounds(final, to, to)
	if lower == "" || upper == "" || lower < upper {
		r, err := rankBetweenUnique(takenExcept(final, to, to), lower, upper)
		if err == nil {
			out[final[to].ID] = r
			return out, nil
		}
	}

	lo, hi := minimalWindow(final, to, to < from)
	lower, upper = bounds(final, lo, hi)
	taken := takenExcept(final, lo, hi)
	for i := lo; i <= hi; i++ {
		r, err := rankBetweenUnique(taken, lower, upper)
		if err != nil {
			return nil, err
		}
		taken[r] = true
		out[final[i].ID] = r
		lower = r
	}
	return out, nil
}

func bounds(final []sibling, lo, hi int) (lower, upper string) {
	if lo > 0 {
		lower = normRank(final[lo-1].Rank)
	}
	if hi+1 < len(final) {
		upper = normRank(final[hi+1].Rank)
	}
	return lower, upper
}

func takenExcept(final []sibling, lo, hi int) map[string]bool {
	taken := map[string]bool{}
	for i, s := range final {
		if i >= lo && i <= hi {
			continue
		}
		if r := normRank(s.Rank); r != "" {
			taken[r] = true
		}
	}
	return taken
}

// minimalWindow finds the smallest [lo, hi] containing idx whose outer
// bounds are open or strictly increasing. preferRight breaks ties toward
// windows extending past idx, which touches the displaced neighbours when
// a row moves up.
func minimalWindow(final []sibling, idx int, preferRight bool) (lo, hi int) {
	valid := func(lo, hi int) bool {
		l, u := bounds(final, lo, hi)
		return l == "" || u == "" || l < u
	}
	n := len(final)
	for size := 1; size <= n; size++ {
		first := max(idx-(size-1), 0)
		last := min(idx, n-size)
		if preferRight {
			for lo := last; lo >= first; lo-- {
				if valid(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
			continue
		}
		for lo := first; lo <= last; lo++ {
			if valid(lo, lo+size-1) {
				return lo, lo + size - 1
			}
		}
	}
	return 0, n - 1
}
