package store

import (
	"strings"
	"testing"
)

func TestRankBetween_PrefixAdjacent_NoSpace(t *testing.T) {
	// '0' is the minimal digit and end-of-string sorts before it.
	if _, err := RankBetween("y", "y0"); err == nil {
		t.Fatalf("expected error for prefix-adjacent bounds, got nil")
	}
}

func TestRankBetween_Ordering(t *testing.T) {
	cases := [][2]string{{"", ""}, {"a", ""}, {"", "a"}, {"a", "b"}, {"a5", "b"}, {"m", "t"}, {"h", "h1"}}
	for _, c := range cases {
		r, err := RankBetween(c[0], c[1])
		if err != nil {
			t.Fatalf("RankBetween(%q, %q): %v", c[0], c[1], err)
		}
		if c[0] != "" && !(c[0] < r) {
			t.Fatalf("RankBetween(%q, %q) = %q, not above lower bound", c[0], c[1], r)
		}
		if c[1] != "" && !(r < c[1]) {
			t.Fatalf("RankBetween(%q, %q) = %q, not below upper bound", c[0], c[1], r)
		}
	}
}

func TestRankBetween_RejectsInvertedBounds(t *testing.T) {
	if _, err := RankBetween("t", "m"); err == nil {
		t.Fatalf("expected error for inverted bounds")
	}
}

func TestRankBetweenUnique_AvoidsCollision(t *testing.T) {
	taken := map[string]bool{"p": true}
	r, err := rankBetweenUnique(taken, "m", "t")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if taken[r] || !("m" < r && r < "t") {
		t.Fatalf("got %q, want a fresh rank in (m, t)", r)
	}
}

func applyPlan(sibs []sibling, plan map[string]string) []string {
	out := make([]sibling, len(sibs))
	copy(out, sibs)
	for i := range out {
		if r, ok := plan[out[i].ID]; ok {
			out[i].Rank = r
		}
	}
	sortSiblings(out)
	ids := make([]string, len(out))
	for i, s := range out {
		ids[i] = s.ID
	}
	return ids
}

func TestPlanMove_PrefixAdjacentBounds_DoesNotJump(t *testing.T) {
	// Display order is x(h), a(y), b(y0). Moving x between a and b has no
	// single-row solution.
	sibs := []sibling{{ID: "x", Rank: "h"}, {ID: "a", Rank: "y"}, {ID: "b", Rank: "y0"}}
	plan, err := planMove(sibs, 0, 1)
	if err != nil {
		t.Fatalf("planMove: %v", err)
	}
	if got, want := strings.Join(applyPlan(sibs, plan), ","), "a,x,b"; got != want {
		t.Fatalf("order = %s, want %s (plan %v)", got, want, plan)
	}
}

func TestPlanMove_SingleRowWhenRoom(t *testing.T) {
	sibs := []sibling{{ID: "a", Rank: "c"}, {ID: "b", Rank: "h"}, {ID: "c", Rank: "p"}}
	plan, err := planMove(sibs, 2, 0)
	if err != nil {
		t.Fatalf("planMove: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected a single rank update, got %v", plan)
	}
	if got, want := strings.Join(applyPlan(sibs, plan), ","), "c,a,b"; got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
}

func TestPlanMove_MatchesSliceMove(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	sibs := make([]sibling, len(ids))
	for i, id := range ids {
		sibs[i] = sibling{ID: id, Rank: string(rankAlphabet[i+1])}
	}
	for step, mv := range [][2]int{{0, 4}, {4, 0}, {1, 2}, {3, 1}, {2, 2}, {0, 1}, {0, 1}, {0, 1}} {
		want := append([]string(nil), ids...)
		moved := want[mv[0]]
		want = append(want[:mv[0]], want[mv[0]+1:]...)
		want = append(want[:mv[1]], append([]string{moved}, want[mv[1]:]...)...)

		plan, err := planMove(sibs, mv[0], mv[1])
		if err != nil {
			t.Fatalf("step %d: planMove: %v", step, err)
		}
		for i := range sibs {
			if r, ok := plan[sibs[i].ID]; ok {
				sibs[i].Rank = r
			}
		}
		sortSiblings(sibs)
		for i, s := range sibs {
			ids[i] = s.ID
		}
		if strings.Join(ids, ",") != strings.Join(want, ",") {
			t.Fatalf("step %d: order = %v, want %v", step, ids, want)
		}
	}
}

func TestNewID_PrefixAndLength(t *testing.T) {
	id, err := newID(prefixItem)
	if err != nil {
		t.Fatalf("newID: %v", err)
	}
	if !strings.HasPrefix(id, "itm-") {
		t.Fatalf("expected itm prefix, got %q", id)
	}
	if got := len(strings.TrimPrefix(id, "itm-")); got != 10 {
		t.Fatalf("expected suffix len 10, got %d (%q)", got, id)
	}
}
