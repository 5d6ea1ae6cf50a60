package app

import (
	"testing"

	"territory-quiz-service/internal/domain"
)

func TestLinearTerritoriesChain(t *testing.T) {
	graph := LinearTerritories(domain.ChapterCount)

	if graph.Initial() != 1 {
		t.Fatalf("expected chapter 1 initial, got %d", graph.Initial())
	}
	for ch := 1; ch < domain.ChapterCount; ch++ {
		next, ok := graph.Next(ch)
		if !ok || next != ch+1 {
			t.Fatalf("chapter %d: expected next %d, got %d (ok=%v)", ch, ch+1, next, ok)
		}
		if graph.Terminal(ch) {
			t.Fatalf("chapter %d should not be terminal", ch)
		}
	}
	if _, ok := graph.Next(domain.ChapterCount); ok {
		t.Fatalf("last chapter must unlock nothing")
	}
	if !graph.Terminal(domain.ChapterCount) {
		t.Fatalf("last chapter should be terminal")
	}
}

func TestEffectiveStatusAbsentRows(t *testing.T) {
	graph := LinearTerritories(domain.ChapterCount)

	if got := graph.EffectiveStatus(nil, "u1", 1); got != domain.StatusAvailable {
		t.Fatalf("chapter 1 without a row should be available, got %s", got)
	}
	for ch := 2; ch <= domain.ChapterCount; ch++ {
		if got := graph.EffectiveStatus(nil, "u1", ch); got != domain.StatusLocked {
			t.Fatalf("chapter %d without a row should be locked, got %s", ch, got)
		}
	}
}

func TestEffectiveStatusUsesOwnRowsOnly(t *testing.T) {
	graph := LinearTerritories(domain.ChapterCount)
	rows := []domain.Progress{
		{UserID: "u1", ChapterNumber: 2, Status: domain.StatusAvailable},
		{UserID: "u2", ChapterNumber: 2, Status: domain.StatusConquered},
	}

	if got := graph.EffectiveStatus(rows, "u1", 2); got != domain.StatusAvailable {
		t.Fatalf("expected u1's own row, got %s", got)
	}
	if got := graph.EffectiveStatus(rows, "u3", 2); got != domain.StatusLocked {
		t.Fatalf("another member's conquest must not unlock u3, got %s", got)
	}
}
