package memory

import (
	"context"
	"sync"
	"time"

	"territory-quiz-service/internal/domain"
)

type progressKey struct {
	userID  string
	chapter int
}

// Store is an in-memory implementation of app.RoomStore and app.ProgressStore
// (useful for tests and demo runs without Postgres).
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]domain.Room
	codes    map[string]string // join code -> room ID
	members  map[string][]domain.RoomMember
	progress map[string]map[progressKey]domain.Progress
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]domain.Room),
		codes:    make(map[string]string),
		members:  make(map[string][]domain.RoomMember),
		progress: make(map[string]map[progressKey]domain.Progress),
		now:      time.Now,
	}
}

func (s *Store) CreateRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	s.codes[room.JoinCode] = room.ID
	return nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *Store) AttachSyllabus(_ context.Context, roomID string, syllabus domain.Syllabus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.Syllabus != nil {
		return domain.ErrSyllabusAlreadySet
	}
	room.Syllabus = &syllabus
	s.rooms[roomID] = room
	return nil
}

func (s *Store) AddMember(_ context.Context, member domain.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[member.RoomID]; !ok {
		return domain.ErrRoomNotFound
	}
	for _, m := range s.members[member.RoomID] {
		if m.UserID == member.UserID {
			return nil
		}
	}
	s.members[member.RoomID] = append(s.members[member.RoomID], member)
	return nil
}

func (s *Store) JoinByCode(_ context.Context, code, userID, displayName string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.codes[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	room := s.rooms[roomID]
	for _, m := range s.members[roomID] {
		if m.UserID == userID {
			// Re-joining with the same code is idempotent.
			return room, nil
		}
	}
	s.members[roomID] = append(s.members[roomID], domain.RoomMember{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Color:       domain.ColorForMemberIndex(len(s.members[roomID])),
		JoinedAt:    s.now(),
	})
	return room, nil
}

func (s *Store) ListMembers(_ context.Context, roomID string) ([]domain.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]domain.RoomMember, len(s.members[roomID]))
	copy(members, s.members[roomID])
	return members, nil
}

func (s *Store) UpsertProgress(_ context.Context, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.progress[p.RoomID]
	if !ok {
		rows = make(map[progressKey]domain.Progress)
		s.progress[p.RoomID] = rows
	}
	rows[progressKey{userID: p.UserID, chapter: p.ChapterNumber}] = p
	return nil
}

func (s *Store) UnlockChapter(_ context.Context, userID, roomID string, chapter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.progress[roomID]
	if !ok {
		rows = make(map[progressKey]domain.Progress)
		s.progress[roomID] = rows
	}
	key := progressKey{userID: userID, chapter: chapter}
	if _, exists := rows[key]; exists {
		return nil
	}
	rows[key] = domain.Progress{
		UserID:        userID,
		RoomID:        roomID,
		ChapterNumber: chapter,
		Status:        domain.StatusAvailable,
	}
	return nil
}

func (s *Store) ListProgress(_ context.Context, roomID string) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]domain.Progress, 0, len(s.progress[roomID]))
	for _, p := range s.progress[roomID] {
		rows = append(rows, p)
	}
	return rows, nil
}

// LoadSyllabus makes the store usable as a SyllabusLoader behind a cache.
func (s *Store) LoadSyllabus(_ context.Context, roomID string) (domain.Syllabus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Syllabus{}, domain.ErrRoomNotFound
	}
	if room.Syllabus == nil {
		return domain.Syllabus{}, domain.ErrSyllabusMissing
	}
	return *room.Syllabus, nil
}
