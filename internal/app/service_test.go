package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"territory-quiz-service/internal/app"
	"territory-quiz-service/internal/domain"
	"territory-quiz-service/internal/infra/memory"
)

func testSyllabus() domain.Syllabus {
	chapters := make([]domain.Chapter, 0, domain.ChapterCount)
	for ch := 1; ch <= domain.ChapterCount; ch++ {
		difficulty := "easy"
		switch {
		case ch >= 6:
			difficulty = "hard"
		case ch >= 3:
			difficulty = "medium"
		}
		questions := make([]domain.Question, 0, domain.QuestionsPerChapter)
		for q := 0; q < domain.QuestionsPerChapter; q++ {
			questions = append(questions, domain.Question{
				Prompt:        fmt.Sprintf("chapter %d question %d", ch, q+1),
				Options:       []string{"a", "b", "c", "d"},
				CorrectAnswer: q % domain.OptionsPerQuestion,
				Difficulty:    difficulty,
			})
		}
		chapters = append(chapters, domain.Chapter{
			ChapterNumber: ch,
			Title:         fmt.Sprintf("Chapter %d", ch),
			Questions:     questions,
			TimeLimit:     120,
		})
	}
	return domain.Syllabus{Chapters: chapters}
}

func newTestService() (*app.Service, *memory.Store) {
	store := memory.NewStore()
	syllabi := memory.NewSyllabusRepository(store, 5*time.Minute)
	generator := memory.NewStaticSyllabusGenerator(testSyllabus())
	return app.NewService(store, store, syllabi, generator, memory.NewNotifier()), store
}

// newTestRoom creates a room owned by u1/Alice with a generated syllabus.
func newTestRoom(t *testing.T, service *app.Service) domain.Room {
	t.Helper()
	ctx := context.Background()
	room, err := service.CreateRoom(ctx, "Biology 101", "u1", "Alice")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := service.GenerateSyllabus(ctx, room.ID, "u1", "cells, mitosis, genetics, evolution"); err != nil {
		t.Fatalf("generate syllabus: %v", err)
	}
	return room
}

func findRow(rows []domain.Progress, userID string, chapter int) (domain.Progress, bool) {
	for _, p := range rows {
		if p.UserID == userID && p.ChapterNumber == chapter {
			return p, true
		}
	}
	return domain.Progress{}, false
}

func TestCreateRoomRegistersCreator(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	room, err := service.CreateRoom(ctx, "Biology 101", "u1", "Alice")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if len(room.JoinCode) != 6 {
		t.Fatalf("expected 6-character join code, got %q", room.JoinCode)
	}

	snap, err := service.Snapshot(ctx, room.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Members) != 1 || snap.Members[0].UserID != "u1" {
		t.Fatalf("expected creator membership, got %+v", snap.Members)
	}
	if snap.Members[0].Color != domain.MemberColors[0] {
		t.Fatalf("creator should get palette color 0, got %s", snap.Members[0].Color)
	}
}

func TestJoinRoomByCode(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	joined, err := service.JoinRoom(ctx, room.JoinCode, "u2", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ID != room.ID {
		t.Fatalf("expected room %s, got %s", room.ID, joined.ID)
	}

	// Codes are case-insensitive on input and joining twice is idempotent.
	if _, err := service.JoinRoom(ctx, strings.ToLower(room.JoinCode), "u2", "Bob"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	snap, _ := service.Snapshot(ctx, room.ID)
	if len(snap.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(snap.Members))
	}
	if snap.Members[1].Color != domain.MemberColors[1] {
		t.Fatalf("second member should get palette color 1, got %s", snap.Members[1].Color)
	}

	if _, err := service.JoinRoom(ctx, "ZZZZZZ", "u3", "Cara"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestFirstConquestScenario(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	outcome, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 60})
	if err != nil {
		t.Fatalf("complete quiz: %v", err)
	}
	if outcome.Status != domain.StatusConquered {
		t.Fatalf("expected conquered, got %s", outcome.Status)
	}
	if outcome.TimeBonus != 6 || outcome.FirstBonus != 50 || outcome.Points != 106 {
		t.Fatalf("expected 5*10+6+50=106, got timeBonus=%d firstBonus=%d points=%d", outcome.TimeBonus, outcome.FirstBonus, outcome.Points)
	}
	if outcome.UnlockedChapter != 2 {
		t.Fatalf("expected chapter 2 unlocked, got %d", outcome.UnlockedChapter)
	}

	snap, _ := service.Snapshot(ctx, room.ID)
	next, ok := findRow(snap.Progress, "u1", 2)
	if !ok || next.Status != domain.StatusAvailable {
		t.Fatalf("expected available row for chapter 2, got %+v (ok=%v)", next, ok)
	}
	if next.Points != 0 || next.Score != 0 {
		t.Fatalf("unlocked row must keep zero score/points, got %+v", next)
	}
}

func TestContestedOverTimeLimit(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	outcome, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 2, TimeTaken: 130})
	if err != nil {
		t.Fatalf("complete quiz: %v", err)
	}
	if outcome.Status != domain.StatusContested {
		t.Fatalf("expected contested, got %s", outcome.Status)
	}
	if outcome.TimeBonus != 0 {
		t.Fatalf("over the limit must clamp the bonus to 0, got %d", outcome.TimeBonus)
	}
	if outcome.UnlockedChapter != 0 {
		t.Fatalf("contested attempt must not unlock, got %d", outcome.UnlockedChapter)
	}

	snap, _ := service.Snapshot(ctx, room.ID)
	if _, ok := findRow(snap.Progress, "u1", 2); ok {
		t.Fatalf("chapter 2 should stay locked after a contested attempt")
	}
}

func TestSecondFinisherGetsNoFirstBonus(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)
	if _, err := service.JoinRoom(ctx, room.JoinCode, "u2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 4, TimeTaken: 100}); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	outcome, err := service.CompleteQuiz(ctx, "u2", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 100})
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if outcome.FirstBonus != 0 {
		t.Fatalf("second finisher must not get the first bonus, got %d", outcome.FirstBonus)
	}
	if outcome.Points != 5*10+2 {
		t.Fatalf("expected 52 points, got %d", outcome.Points)
	}
}

func TestRepeatAttemptOverwritesRow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 1, TimeTaken: 110}); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 4, TimeTaken: 80}); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	snap, _ := service.Snapshot(ctx, room.ID)
	count := 0
	for _, p := range snap.Progress {
		if p.UserID == "u1" && p.ChapterNumber == 1 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("upsert key must yield exactly one row, got %d", count)
	}
	row, _ := findRow(snap.Progress, "u1", 1)
	if row.Status != domain.StatusConquered || row.Score != 4 {
		t.Fatalf("row must reflect the latest write, got %+v", row)
	}
}

func TestConquestNeverOverwritesNextChapterRow(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 60}); err != nil {
		t.Fatalf("conquer chapter 1: %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 2, Score: 4, TimeTaken: 70}); err != nil {
		t.Fatalf("conquer chapter 2: %v", err)
	}

	// Re-conquering chapter 1 must not recreate or downgrade chapter 2.
	outcome, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 50})
	if err != nil {
		t.Fatalf("re-conquer chapter 1: %v", err)
	}
	if outcome.UnlockedChapter != 0 {
		t.Fatalf("existing chapter 2 row must not be re-unlocked, got %d", outcome.UnlockedChapter)
	}

	snap, _ := service.Snapshot(ctx, room.ID)
	row, _ := findRow(snap.Progress, "u1", 2)
	if row.Status != domain.StatusConquered {
		t.Fatalf("chapter 2 row must keep its conquered state, got %s", row.Status)
	}
}

func TestCompleteQuizValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 6, TimeTaken: 10}); !errors.Is(err, domain.ErrInvalidQuizResult) {
		t.Fatalf("expected ErrInvalidQuizResult for score 6, got %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 3, TimeTaken: -1}); !errors.Is(err, domain.ErrInvalidQuizResult) {
		t.Fatalf("expected ErrInvalidQuizResult for negative time, got %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 9, Score: 3, TimeTaken: 10}); !errors.Is(err, domain.ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}

	// Missing identity is a defensive no-op: no error, no write.
	if _, err := service.CompleteQuiz(ctx, "", room.ID, app.QuizResult{ChapterNumber: 1, Score: 3, TimeTaken: 10}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	snap, _ := service.Snapshot(ctx, room.ID)
	for _, p := range snap.Progress {
		if p.UserID == "" {
			t.Fatalf("no row may be written without an identity: %+v", p)
		}
	}
}

func TestLeaderboardTotalsAndOrder(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)
	if _, err := service.JoinRoom(ctx, room.JoinCode, "u2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Alice: conquered ch1 (106) then contested ch2 (20 + first bonus = 70).
	// Bob: conquered ch1 (52, no first bonus).
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 60}); err != nil {
		t.Fatalf("u1 ch1: %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 2, Score: 2, TimeTaken: 130}); err != nil {
		t.Fatalf("u1 ch2: %v", err)
	}
	if _, err := service.CompleteQuiz(ctx, "u2", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 100}); err != nil {
		t.Fatalf("u2 ch1: %v", err)
	}

	entries, err := service.Leaderboard(ctx, room.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "u1" || entries[0].TotalPoints != 176 {
		t.Fatalf("expected Alice leading with 176 (contested points still count), got %+v", entries[0])
	}
	if entries[0].TerritoriesConquered != 1 {
		t.Fatalf("contested chapters must not count as conquered, got %d", entries[0].TerritoriesConquered)
	}
	if entries[1].UserID != "u2" || entries[1].TotalPoints != 52 {
		t.Fatalf("expected Bob with 52, got %+v", entries[1])
	}
}

func TestLeaderboardTiesKeepMemberOrder(t *testing.T) {
	members := []domain.RoomMember{
		{UserID: "u1", DisplayName: "Alice"},
		{UserID: "u2", DisplayName: "Bob"},
		{UserID: "u3", DisplayName: "Cara"},
	}
	progress := []domain.Progress{
		{UserID: "u2", ChapterNumber: 1, Status: domain.StatusConquered, Points: 40},
		{UserID: "u1", ChapterNumber: 1, Status: domain.StatusConquered, Points: 40},
		{UserID: "u3", ChapterNumber: 1, Status: domain.StatusConquered, Points: 90},
	}

	entries := app.BuildLeaderboard(members, progress)
	if entries[0].UserID != "u3" {
		t.Fatalf("expected u3 leading, got %+v", entries[0])
	}
	if entries[1].UserID != "u1" || entries[2].UserID != "u2" {
		t.Fatalf("ties must keep member order, got %+v", entries[1:])
	}
}

func TestSubscribeReceivesProgressEvents(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	room := newTestRoom(t, service)

	events, cancel, err := service.Subscribe(ctx, room.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := service.CompleteQuiz(ctx, "u1", room.ID, app.QuizResult{ChapterNumber: 1, Score: 5, TimeTaken: 60}); err != nil {
		t.Fatalf("complete quiz: %v", err)
	}

	select {
	case event := <-events:
		if event.RoomID != room.ID || event.Table != "progress" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a progress event")
	}
}
