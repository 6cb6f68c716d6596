// README: Pure fair-use ranking and schedule conflict checks.
package crew

import (
	"sort"
	"time"

	"shuttle/internal/types"
)

// Rank orders staff by fewest prior picks, then last name, first name and id.
func Rank(staff []Staff, counts map[types.ID]int) []Candidate {
	out := make([]Candidate, len(staff))
	for i, s := range staff {
		out[i] = Candidate{Staff: s, Picks: counts[s.ID]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Picks != b.Picks {
			return a.Picks < b.Picks
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return out
}

// Conflicts reports whether any busy departure is within window of departure, inclusive.
func Conflicts(departure time.Time, busy []time.Time, window time.Duration) bool {
	for _, b := range busy {
		d := departure.Sub(b)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return true
		}
	}
	return false
}

// Choose walks the ranking and returns the first candidate free around departure, with the
// number of candidates skipped for conflicts.
func Choose(ranked []Candidate, busy map[types.ID][]time.Time, departure time.Time, window time.Duration) (Candidate, int, bool) {
	skipped := 0
	for _, c := range ranked {
		if Conflicts(departure, busy[c.ID], window) {
			skipped++
			continue
		}
		return c, skipped, true
	}
	return Candidate{}, skipped, false
}
