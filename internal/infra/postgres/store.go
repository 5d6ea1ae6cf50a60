package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"territory-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements app.RoomStore and app.ProgressStore on Postgres. All
// progress writes are upserts keyed by the unique (user, room, chapter)
// triple, so individual writes are idempotent and safe to retry.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, room_code, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		room.ID, room.Name, room.JoinCode, room.CreatedBy, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return s.scanRoom(ctx, `SELECT id, name, room_code, created_by, syllabus_data, created_at FROM rooms WHERE id=$1`, roomID)
}

func (s *Store) scanRoom(ctx context.Context, query string, arg interface{}) (domain.Room, error) {
	var (
		room domain.Room
		raw  []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(&room.ID, &room.Name, &room.JoinCode, &room.CreatedBy, &raw, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	if len(raw) > 0 {
		var syllabus domain.Syllabus
		if err := json.Unmarshal(raw, &syllabus); err != nil {
			return domain.Room{}, fmt.Errorf("unmarshal syllabus: %w", err)
		}
		room.Syllabus = &syllabus
	}
	return room, nil
}

func (s *Store) AttachSyllabus(ctx context.Context, roomID string, syllabus domain.Syllabus) error {
	raw, err := json.Marshal(syllabus)
	if err != nil {
		return fmt.Errorf("marshal syllabus: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET syllabus_data=$2 WHERE id=$1 AND syllabus_data IS NULL`,
		roomID, raw)
	if err != nil {
		return fmt.Errorf("attach syllabus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		room, err := s.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Syllabus != nil {
			return domain.ErrSyllabusAlreadySet
		}
		return fmt.Errorf("attach syllabus: no row updated for room %s", roomID)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, member domain.RoomMember) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, display_name, color, joined_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		member.RoomID, member.UserID, member.DisplayName, member.Color, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// JoinByCode validates a join code and creates the membership in one
// transaction. The room row is locked so concurrent joiners get distinct
// palette colors.
func (s *Store) JoinByCode(ctx context.Context, code, userID, displayName string) (domain.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Room{}, fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		room domain.Room
		raw  []byte
	)
	err = tx.QueryRow(ctx,
		`SELECT id, name, room_code, created_by, syllabus_data, created_at FROM rooms WHERE room_code=$1 FOR UPDATE`,
		code).Scan(&room.ID, &room.Name, &room.JoinCode, &room.CreatedBy, &raw, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room by code: %w", err)
	}
	if len(raw) > 0 {
		var syllabus domain.Syllabus
		if err := json.Unmarshal(raw, &syllabus); err != nil {
			return domain.Room{}, fmt.Errorf("unmarshal syllabus: %w", err)
		}
		room.Syllabus = &syllabus
	}

	var memberCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM room_members WHERE room_id=$1`, room.ID).Scan(&memberCount); err != nil {
		return domain.Room{}, fmt.Errorf("count members: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, display_name, color, joined_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		room.ID, userID, displayName, domain.ColorForMemberIndex(memberCount))
	if err != nil {
		return domain.Room{}, fmt.Errorf("insert member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Room{}, fmt.Errorf("commit join: %w", err)
	}
	return room, nil
}

func (s *Store) ListMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_id, user_id, display_name, color, joined_at FROM room_members WHERE room_id=$1 ORDER BY joined_at`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.RoomMember
	for rows.Next() {
		var m domain.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.Color, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) UpsertProgress(ctx context.Context, p domain.Progress) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO progress (user_id, room_id, chapter_number, status, score, completion_time, points, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, room_id, chapter_number) DO UPDATE
		 SET status=EXCLUDED.status, score=EXCLUDED.score, completion_time=EXCLUDED.completion_time,
		     points=EXCLUDED.points, completed_at=EXCLUDED.completed_at`,
		p.UserID, p.RoomID, p.ChapterNumber, p.Status, p.Score, p.CompletionTime, p.Points, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *Store) UnlockChapter(ctx context.Context, userID, roomID string, chapter int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO progress (user_id, room_id, chapter_number, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, room_id, chapter_number) DO NOTHING`,
		userID, roomID, chapter, domain.StatusAvailable)
	if err != nil {
		return fmt.Errorf("unlock chapter: %w", err)
	}
	return nil
}

func (s *Store) ListProgress(ctx context.Context, roomID string) ([]domain.Progress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, room_id, chapter_number, status, score, completion_time, points, completed_at
		 FROM progress WHERE room_id=$1 ORDER BY user_id, chapter_number`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var result []domain.Progress
	for rows.Next() {
		var p domain.Progress
		if err := rows.Scan(&p.UserID, &p.RoomID, &p.ChapterNumber, &p.Status, &p.Score, &p.CompletionTime, &p.Points, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// LoadSyllabus makes the store usable as a SyllabusLoader behind a cache.
func (s *Store) LoadSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT syllabus_data FROM rooms WHERE id=$1`, roomID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Syllabus{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Syllabus{}, fmt.Errorf("load syllabus: %w", err)
	}
	if len(raw) == 0 {
		return domain.Syllabus{}, domain.ErrSyllabusMissing
	}
	var syllabus domain.Syllabus
	if err := json.Unmarshal(raw, &syllabus); err != nil {
		return domain.Syllabus{}, fmt.Errorf("unmarshal syllabus: %w", err)
	}
	return syllabus, nil
}
