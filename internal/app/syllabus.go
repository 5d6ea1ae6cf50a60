package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"territory-quiz-service/internal/domain"
)

// maxSyllabusContentChars bounds the text forwarded to the generator.
const maxSyllabusContentChars = 8000

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// GenerateSyllabus runs the one-time syllabus attachment for a room: call the
// generator, validate the payload against the chapter schema, persist it, and
// seed the caller's chapter-1 progress as available.
func (s *Service) GenerateSyllabus(ctx context.Context, roomID, userID, content string) (domain.Syllabus, error) {
	if roomID == "" || userID == "" || strings.TrimSpace(content) == "" {
		return domain.Syllabus{}, domain.ErrMissingInput
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Syllabus{}, err
	}
	if room.Syllabus != nil {
		return domain.Syllabus{}, domain.ErrSyllabusAlreadySet
	}
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return domain.Syllabus{}, fmt.Errorf("list members: %w", err)
	}
	if !memberOf(members, userID) {
		return domain.Syllabus{}, domain.ErrMemberNotFound
	}

	if runes := []rune(content); len(runes) > maxSyllabusContentChars {
		content = string(runes[:maxSyllabusContentChars])
	}

	syllabus, err := s.generator.GenerateSyllabus(ctx, content)
	if err != nil {
		return domain.Syllabus{}, err
	}
	if err := ValidateSyllabus(syllabus); err != nil {
		return domain.Syllabus{}, err
	}

	if err := s.rooms.AttachSyllabus(ctx, roomID, syllabus); err != nil {
		return domain.Syllabus{}, fmt.Errorf("attach syllabus: %w", err)
	}

	// Seed the caller's first territory; best effort like the unlock cascade.
	if err := s.progress.UnlockChapter(ctx, userID, roomID, s.territories.Initial()); err != nil {
		log.Printf("seed chapter %d for user %s in room %s: %v", s.territories.Initial(), userID, roomID, err)
	}

	s.notifier.Publish(ctx, domain.RoomEvent{RoomID: roomID, Table: "rooms"})
	s.notifier.Publish(ctx, domain.RoomEvent{RoomID: roomID, Table: "progress"})
	return syllabus, nil
}

// ValidateSyllabus checks generated content against the fixed contract before
// it is trusted by the scoring path: exactly 7 contiguous chapters, 5
// questions each, 4 options per question, a valid correct index, a known
// difficulty tag, and a positive time limit.
func ValidateSyllabus(s domain.Syllabus) error {
	if len(s.Chapters) != domain.ChapterCount {
		return fmt.Errorf("%w: expected %d chapters, got %d", domain.ErrInvalidSyllabus, domain.ChapterCount, len(s.Chapters))
	}
	for i, ch := range s.Chapters {
		if ch.ChapterNumber != i+1 {
			return fmt.Errorf("%w: chapter %d numbered %d", domain.ErrInvalidSyllabus, i+1, ch.ChapterNumber)
		}
		if strings.TrimSpace(ch.Title) == "" {
			return fmt.Errorf("%w: chapter %d has no title", domain.ErrInvalidSyllabus, ch.ChapterNumber)
		}
		if ch.TimeLimit <= 0 {
			return fmt.Errorf("%w: chapter %d has time limit %d", domain.ErrInvalidSyllabus, ch.ChapterNumber, ch.TimeLimit)
		}
		if len(ch.Questions) != domain.QuestionsPerChapter {
			return fmt.Errorf("%w: chapter %d has %d questions", domain.ErrInvalidSyllabus, ch.ChapterNumber, len(ch.Questions))
		}
		for qi, q := range ch.Questions {
			if len(q.Options) != domain.OptionsPerQuestion {
				return fmt.Errorf("%w: chapter %d question %d has %d options", domain.ErrInvalidSyllabus, ch.ChapterNumber, qi+1, len(q.Options))
			}
			if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
				return fmt.Errorf("%w: chapter %d question %d correct index %d", domain.ErrInvalidSyllabus, ch.ChapterNumber, qi+1, q.CorrectAnswer)
			}
			if !difficulties[q.Difficulty] {
				return fmt.Errorf("%w: chapter %d question %d difficulty %q", domain.ErrInvalidSyllabus, ch.ChapterNumber, qi+1, q.Difficulty)
			}
		}
	}
	return nil
}
