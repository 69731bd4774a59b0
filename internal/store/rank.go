package store

import (
	"errors"
	"strings"
)

// Sibling order is stored as a lexicographic rank string per row, so a move
// usually rewrites a single row. Ranks use the digits 0-9a-z.
const (
	rankAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	rankMaxDigit = len(rankAlphabet) - 1
	rankMaxLen   = 256
)

var errNoRankSpace = errors.New("no space between ranks")

func rankDigit(c byte) (int, bool) {
	i := strings.IndexByte(rankAlphabet, c)
	return i, i >= 0
}

func normRank(r string) string { return strings.ToLower(strings.TrimSpace(r)) }

// RankBetween returns a rank strictly between lo and hi. Either bound may be
// empty, meaning unbounded on that side.
func RankBetween(lo, hi string) (string, error) {
	lo, hi = normRank(lo), normRank(hi)
	if lo != "" && hi != "" && lo >= hi {
		return "", errors.New("rank bounds out of order")
	}
	inside := func(r string) bool {
		return r != "" && (lo == "" || lo < r) && (hi == "" || r < hi)
	}

	prefix := make([]byte, 0, 8)
	for i := 0; i < rankMaxLen; i++ {
		dl, dh := 0, rankMaxDigit
		if i < len(lo) {
			d, ok := rankDigit(lo[i])
			if !ok {
				return "", errors.New("invalid rank character in lower bound")
			}
			dl = d
		}
		if i < len(hi) {
			d, ok := rankDigit(hi[i])
			if !ok {
				return "", errors.New("invalid rank character in upper bound")
			}
			dh = d
		}
		switch {
		case dl == dh:
			prefix = append(prefix, rankAlphabet[dl])
		case dh-dl > 1:
			r := string(append(prefix, rankAlphabet[dl+(dh-dl)/2]))
			if !inside(r) {
				// hi extends lo by a zero digit ("y" < "y0"): nothing fits.
				return "", errNoRankSpace
			}
			return r, nil
		default:
			// Adjacent digits: any extension of lo stays below hi.
			r := lo + "0"
			if !inside(r) {
				return "", errNoRankSpace
			}
			return r, nil
		}
	}
	return "", errNoRankSpace
}

func RankAfter(r string) (string, error) { return RankBetween(r, "") }

func RankInitial() (string, error) { return RankBetween("", "") }

// rankBetweenUnique is RankBetween avoiding every rank in taken.
func rankBetweenUnique(taken map[string]bool, lo, hi string) (string, error) {
	cur := normRank(lo)
	hi = normRank(hi)
	for i := 0; i < rankMaxLen; i++ {
		r, err := RankBetween(cur, hi)
		if err != nil {
			return "", err
		}
		if !taken[r] {
			return r, nil
		}
		cur = r
	}
	return "", errors.New("unable to find unique rank")
}
