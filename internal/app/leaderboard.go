package app

import (
	"sort"

	"territory-quiz-service/internal/domain"
)

// BuildLeaderboard projects one room's members and progress rows into ranked
// standings. Points from contested attempts count toward the total; only
// conquered rows count toward territories. Ordered descending by points;
// ties keep member order.
func BuildLeaderboard(members []domain.RoomMember, progress []domain.Progress) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		entry := domain.LeaderboardEntry{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Color:       m.Color,
		}
		for _, p := range progress {
			if p.UserID != m.UserID {
				continue
			}
			entry.TotalPoints += p.Points
			if p.Status == domain.StatusConquered {
				entry.TerritoriesConquered++
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	return entries
}
