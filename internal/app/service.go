package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"territory-quiz-service/internal/domain"

	"github.com/google/uuid"
)

// RoomStore abstracts room and membership persistence (in-memory, Postgres).
type RoomStore interface {
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	AttachSyllabus(ctx context.Context, roomID string, syllabus domain.Syllabus) error
	AddMember(ctx context.Context, member domain.RoomMember) error
	// JoinByCode atomically validates a join code and creates the membership,
	// assigning the next palette color. Joining twice is idempotent.
	JoinByCode(ctx context.Context, code, userID, displayName string) (domain.Room, error)
	ListMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error)
}

// ProgressStore abstracts the shared progress records. All writes are upserts
// keyed by the unique (user, room, chapter) triple.
type ProgressStore interface {
	UpsertProgress(ctx context.Context, p domain.Progress) error
	// UnlockChapter inserts an available row if none exists for the triple.
	// It never overwrites an existing row.
	UnlockChapter(ctx context.Context, userID, roomID string, chapter int) error
	ListProgress(ctx context.Context, roomID string) ([]domain.Progress, error)
}

// SyllabusRepository loads a room's syllabus (from cache/backing store).
type SyllabusRepository interface {
	GetSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error)
}

// SyllabusGenerator turns raw syllabus text into the fixed chapter payload.
type SyllabusGenerator interface {
	GenerateSyllabus(ctx context.Context, content string) (domain.Syllabus, error)
}

// Notifier fans room change events out to subscribed clients. Publish is
// best-effort; subscribers react by reloading the full snapshot.
type Notifier interface {
	Publish(ctx context.Context, event domain.RoomEvent)
	Subscribe(ctx context.Context, roomID string) (<-chan domain.RoomEvent, func(), error)
}

// Service contains the study-room use cases: room lifecycle, syllabus
// generation, quiz scoring, and snapshot/leaderboard reads.
type Service struct {
	rooms       RoomStore
	progress    ProgressStore
	syllabi     SyllabusRepository
	generator   SyllabusGenerator
	notifier    Notifier
	territories TerritoryGraph
	now         func() time.Time
}

func NewService(rooms RoomStore, progress ProgressStore, syllabi SyllabusRepository, generator SyllabusGenerator, notifier Notifier) *Service {
	return &Service{
		rooms:       rooms,
		progress:    progress,
		syllabi:     syllabi,
		generator:   generator,
		notifier:    notifier,
		territories: LinearTerritories(domain.ChapterCount),
		now:         time.Now,
	}
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(rooms RoomStore, progress ProgressStore, syllabi SyllabusRepository, generator SyllabusGenerator, notifier Notifier, now func() time.Time) *Service {
	s := NewService(rooms, progress, syllabi, generator, notifier)
	s.now = now
	return s
}

// Territories exposes the unlock topology, e.g. for transport-level gating.
func (s *Service) Territories() TerritoryGraph {
	return s.territories
}

// CreateRoom creates a room with a fresh join code and registers the creator
// as the first member (palette color 0).
func (s *Service) CreateRoom(ctx context.Context, name, userID, displayName string) (domain.Room, error) {
	if strings.TrimSpace(name) == "" || userID == "" {
		return domain.Room{}, domain.ErrMissingInput
	}

	now := s.now()
	room := domain.Room{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		JoinCode:  NewJoinCode(),
		CreatedBy: userID,
		CreatedAt: now,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}

	member := domain.RoomMember{
		RoomID:      room.ID,
		UserID:      userID,
		DisplayName: displayName,
		Color:       domain.ColorForMemberIndex(0),
		JoinedAt:    now,
	}
	if err := s.rooms.AddMember(ctx, member); err != nil {
		return domain.Room{}, fmt.Errorf("add creator membership: %w", err)
	}

	s.notifier.Publish(ctx, domain.RoomEvent{RoomID: room.ID, Table: "room_members"})
	return room, nil
}

// JoinRoom resolves a join code and adds the user to the room. Codes are
// case-insensitive on input but stored uppercase.
func (s *Service) JoinRoom(ctx context.Context, code, userID, displayName string) (domain.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || userID == "" {
		return domain.Room{}, domain.ErrMissingInput
	}

	room, err := s.rooms.JoinByCode(ctx, code, userID, displayName)
	if err != nil {
		return domain.Room{}, err
	}

	s.notifier.Publish(ctx, domain.RoomEvent{RoomID: room.ID, Table: "room_members"})
	return room, nil
}

// Snapshot loads the full shared state of one room. It is recomputed from
// scratch on every call; concurrent writers may be interleaved and are healed
// by the next reload.
func (s *Service) Snapshot(ctx context.Context, roomID string) (domain.RoomSnapshot, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("list members: %w", err)
	}
	progress, err := s.progress.ListProgress(ctx, roomID)
	if err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("list progress: %w", err)
	}
	return domain.RoomSnapshot{Room: room, Members: members, Progress: progress}, nil
}

// Leaderboard derives the ranked standings for one room.
func (s *Service) Leaderboard(ctx context.Context, roomID string) ([]domain.LeaderboardEntry, error) {
	snap, err := s.Snapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return BuildLeaderboard(snap.Members, snap.Progress), nil
}

// Subscribe returns a channel of change events for one room. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(ctx context.Context, roomID string) (<-chan domain.RoomEvent, func(), error) {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, nil, err
	}
	return s.notifier.Subscribe(ctx, roomID)
}

// memberOf reports whether userID belongs to the given member list.
func memberOf(members []domain.RoomMember, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
