package app

import "territory-quiz-service/internal/domain"

// TerritoryGraph defines which chapters are reachable from which. Each node
// unlocks at most one successor, so richer topologies can be substituted
// without touching the scoring write path.
type TerritoryGraph struct {
	initial int
	next    map[int]int
}

// LinearTerritories builds the strictly linear chain 1 -> 2 -> ... -> count.
// Chapter 1 is the initial territory; conquering the last unlocks nothing.
func LinearTerritories(count int) TerritoryGraph {
	next := make(map[int]int, count)
	for ch := 1; ch < count; ch++ {
		next[ch] = ch + 1
	}
	return TerritoryGraph{initial: 1, next: next}
}

// Initial returns the chapter that is implicitly available to every member.
func (g TerritoryGraph) Initial() int {
	return g.initial
}

// Next returns the chapter unlocked by conquering the given one, if any.
func (g TerritoryGraph) Next(chapter int) (int, bool) {
	n, ok := g.next[chapter]
	return n, ok
}

// Terminal reports whether conquering the chapter unlocks nothing further.
func (g TerritoryGraph) Terminal(chapter int) bool {
	_, ok := g.next[chapter]
	return !ok
}

// EffectiveStatus resolves a member's status for a chapter against the full
// room progress set. Absence of a row means available for the initial chapter
// and locked for every other.
func (g TerritoryGraph) EffectiveStatus(rows []domain.Progress, userID string, chapter int) domain.Status {
	for _, p := range rows {
		if p.UserID == userID && p.ChapterNumber == chapter {
			return p.Status
		}
	}
	if chapter == g.initial {
		return domain.StatusAvailable
	}
	return domain.StatusLocked
}
