package app

import (
	"context"
	"fmt"
	"log"

	"territory-quiz-service/internal/domain"
)

// firstConquerorBonus is awarded to the first member of a room to complete a
// chapter, conquered or contested.
const firstConquerorBonus = 50

const pointsPerCorrectAnswer = 10

// QuizResult is the signal handed over by a finished quiz attempt.
type QuizResult struct {
	ChapterNumber int `json:"chapterNumber"`
	Score         int `json:"score"`     // correct answers, 0..5
	TimeTaken     int `json:"timeTaken"` // elapsed seconds
}

// QuizOutcome is the durable result of scoring one attempt.
type QuizOutcome struct {
	ChapterNumber   int           `json:"chapterNumber"`
	Status          domain.Status `json:"status"`
	Score           int           `json:"score"`
	TimeBonus       int           `json:"timeBonus"`
	FirstBonus      int           `json:"firstBonus"`
	Points          int           `json:"points"`
	UnlockedChapter int           `json:"unlockedChapter,omitempty"`
}

// CompleteQuiz converts one finished attempt into a progress upsert and, on
// conquest, a best-effort unlock of the next territory.
//
// The first-conqueror check runs against the snapshot taken before this
// write: two simultaneous first attempts can both claim the bonus. That race
// is accepted; the next full reload shows consistent totals either way.
func (s *Service) CompleteQuiz(ctx context.Context, userID, roomID string, result QuizResult) (QuizOutcome, error) {
	if userID == "" || roomID == "" {
		// Defensive guard: nothing to score without an acting identity.
		return QuizOutcome{}, nil
	}
	if result.Score < 0 || result.Score > domain.QuestionsPerChapter || result.TimeTaken < 0 {
		return QuizOutcome{}, domain.ErrInvalidQuizResult
	}

	syllabus, err := s.syllabi.GetSyllabus(ctx, roomID)
	if err != nil {
		return QuizOutcome{}, err
	}
	chapter, ok := syllabus.Chapter(result.ChapterNumber)
	if !ok {
		return QuizOutcome{}, domain.ErrChapterNotFound
	}

	// Pre-write snapshot: drives both the first bonus and the unlock check.
	rows, err := s.progress.ListProgress(ctx, roomID)
	if err != nil {
		return QuizOutcome{}, fmt.Errorf("load progress: %w", err)
	}

	outcome := scoreAttempt(result, chapter.TimeLimit, !chapterCompletedByAnyone(rows, result.ChapterNumber))

	now := s.now()
	taken := result.TimeTaken
	row := domain.Progress{
		UserID:         userID,
		RoomID:         roomID,
		ChapterNumber:  result.ChapterNumber,
		Status:         outcome.Status,
		Score:          result.Score,
		CompletionTime: &taken,
		Points:         outcome.Points,
		CompletedAt:    &now,
	}
	if err := s.progress.UpsertProgress(ctx, row); err != nil {
		return QuizOutcome{}, fmt.Errorf("save progress: %w", err)
	}

	if outcome.Status == domain.StatusConquered {
		if next, ok := s.territories.Next(result.ChapterNumber); ok && !hasRow(rows, userID, next) {
			// Best effort: the primary write stays even if this insert fails.
			if err := s.progress.UnlockChapter(ctx, userID, roomID, next); err != nil {
				log.Printf("unlock chapter %d for user %s in room %s: %v", next, userID, roomID, err)
			} else {
				outcome.UnlockedChapter = next
			}
		}
	}

	s.notifier.Publish(ctx, domain.RoomEvent{RoomID: roomID, Table: "progress"})
	return outcome, nil
}

// scoreAttempt is the pure scoring rule: status from the conquer threshold,
// a time bonus for finishing early, and the one-time first-conqueror bonus.
func scoreAttempt(result QuizResult, timeLimit int, first bool) QuizOutcome {
	status := domain.StatusContested
	if result.Score >= domain.ConquerThreshold {
		status = domain.StatusConquered
	}

	bonus := (timeLimit - result.TimeTaken) / 10
	if bonus < 0 {
		bonus = 0
	}

	firstBonus := 0
	if first {
		firstBonus = firstConquerorBonus
	}

	return QuizOutcome{
		ChapterNumber: result.ChapterNumber,
		Status:        status,
		Score:         result.Score,
		TimeBonus:     bonus,
		FirstBonus:    firstBonus,
		Points:        result.Score*pointsPerCorrectAnswer + bonus + firstBonus,
	}
}

// chapterCompletedByAnyone reports whether any member has a conquered or
// contested row for the chapter.
func chapterCompletedByAnyone(rows []domain.Progress, chapter int) bool {
	for _, p := range rows {
		if p.ChapterNumber == chapter && (p.Status == domain.StatusConquered || p.Status == domain.StatusContested) {
			return true
		}
	}
	return false
}

func hasRow(rows []domain.Progress, userID string, chapter int) bool {
	for _, p := range rows {
		if p.UserID == userID && p.ChapterNumber == chapter {
			return true
		}
	}
	return false
}
