package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"territory-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SyllabusLoader fetches a room's syllabus from a backing store.
type SyllabusLoader interface {
	LoadSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error)
}

// SyllabusRepository caches each room's syllabus as a JSON blob in Redis
// (key room:{roomID}:syllabus) and falls back to the loader on cache miss.
// Misses are not cached: a room without a syllabus stays a loader error.
type SyllabusRepository struct {
	client *redis.Client
	loader SyllabusLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewSyllabusRepository(client *redis.Client, loader SyllabusLoader, ttl time.Duration) *SyllabusRepository {
	return &SyllabusRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SyllabusRepository) GetSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error) {
	key := r.key(roomID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var syllabus domain.Syllabus
		if jsonErr := json.Unmarshal(raw, &syllabus); jsonErr == nil {
			return syllabus, nil
		}
		// Corrupt cache entry: fall through and rebuild from the loader.
	}

	result, err, _ := r.sf.Do(roomID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var syllabus domain.Syllabus
			if jsonErr := json.Unmarshal(raw, &syllabus); jsonErr == nil {
				return syllabus, nil
			}
		}

		syllabus, err := r.loader.LoadSyllabus(ctx, roomID)
		if err != nil {
			return domain.Syllabus{}, err
		}

		if raw, err := json.Marshal(syllabus); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return syllabus, nil
	})
	if err != nil {
		return domain.Syllabus{}, err
	}
	return result.(domain.Syllabus), nil
}

func (r *SyllabusRepository) key(roomID string) string {
	return "room:" + roomID + ":syllabus"
}

func (r *SyllabusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
