package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"territory-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SyllabusLoader fetches a room's syllabus from a backing store.
type SyllabusLoader interface {
	LoadSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error)
}

// SyllabusRepository caches syllabi with TTL to avoid repeated store hits;
// chapters are immutable once generated, so staleness only matters for the
// window before attachment (misses are not cached).
type SyllabusRepository struct {
	loader SyllabusLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSyllabus
}

type cachedSyllabus struct {
	syllabus  domain.Syllabus
	expiresAt time.Time
}

func NewSyllabusRepository(loader SyllabusLoader, ttl time.Duration) *SyllabusRepository {
	return &SyllabusRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSyllabus),
	}
}

func (r *SyllabusRepository) GetSyllabus(ctx context.Context, roomID string) (domain.Syllabus, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[roomID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.syllabus, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(roomID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[roomID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.syllabus, nil
		}
		r.mu.RUnlock()

		syllabus, err := r.loader.LoadSyllabus(ctx, roomID)
		if err != nil {
			return domain.Syllabus{}, err
		}

		r.mu.Lock()
		r.cache[roomID] = cachedSyllabus{
			syllabus:  syllabus,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return syllabus, nil
	})
	if err != nil {
		return domain.Syllabus{}, err
	}
	return result.(domain.Syllabus), nil
}

func (r *SyllabusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
