package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"coefcalc/internal/config"
	"coefcalc/internal/infrastructure"
	"coefcalc/pkg/contracts/domain"
)

// session is one stored calculation
type session struct {
	result    *domain.CalculationResult
	createdAt time.Time
	expiresAt time.Time
}

// SessionStats describes the store contents
type SessionStats struct {
	Active   int           `json:"active"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
	Evicted  int64         `json:"evicted"`
	Expired  int64         `json:"expired"`
}

// SessionStore keeps finished calculations in memory until they expire.
// When full, the oldest calculation is evicted.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	capacity int
	evicted  int64
	expired  int64
	metrics  *infrastructure.CalculationMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionStore creates an in-memory session store
func NewSessionStore(cfg config.CalculationConfig, metrics *infrastructure.CalculationMetrics, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	capacity := cfg.MaxSessions
	if capacity <= 0 {
		capacity = 1
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		capacity: capacity,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "session_store")),
		now:      time.Now,
	}
}

// Put stores a result under its ID, replacing any previous entry
func (s *SessionStore) Put(ctx context.Context, res *domain.CalculationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.sessions[res.ID]; !exists {
		s.sweepLocked(ctx, now)
		for len(s.sessions) >= s.capacity {
			s.evictOldestLocked(ctx)
		}
		s.metrics.SessionDelta(ctx, 1)
	}

	s.sessions[res.ID] = &session{
		result:    res,
		createdAt: now,
		expiresAt: now.Add(s.ttl),
	}
}

// Get returns the stored result. Results are shared read-only.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.CalculationResult, error) {
	s.mu.RLock()
	sess, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists || s.now().After(sess.expiresAt) {
		return nil, ErrCalculationNotFound
	}
	return sess.result, nil
}

// Delete removes a stored result
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return ErrCalculationNotFound
	}
	delete(s.sessions, id)
	s.metrics.SessionDelta(ctx, -1)
	return nil
}

// List returns the IDs of live sessions, newest first
func (s *SessionStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	type entry struct {
		id      string
		created time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			continue
		}
		entries = append(entries, entry{id, sess.createdAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].id < entries[j].id
		}
		return entries[i].created.After(entries[j].created)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// Cleanup removes expired sessions and returns how many were removed
func (s *SessionStore) Cleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(ctx, s.now())
}

// Run sweeps expired sessions every interval until ctx is done
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(ctx); n > 0 {
				s.logger.DebugContext(ctx, "Expired sessions removed", slog.Int("count", n))
			}
		}
	}
}

// Stats returns store statistics
func (s *SessionStore) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionStats{
		Active:   len(s.sessions),
		Capacity: s.capacity,
		TTL:      s.ttl,
		Evicted:  s.evicted,
		Expired:  s.expired,
	}
}

func (s *SessionStore) sweepLocked(ctx context.Context, now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.expired += int64(removed)
		s.metrics.SessionDelta(ctx, -int64(removed))
	}
	return removed
}

func (s *SessionStore) evictOldestLocked(ctx context.Context) {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.createdAt.Before(oldest) {
			oldestID, oldest = id, sess.createdAt
		}
	}
	if oldestID == "" {
		return
	}
	delete(s.sessions, oldestID)
	s.evicted++
	s.metrics.SessionDelta(ctx, -1)
	s.logger.InfoContext(ctx, "Session evicted", slog.String("calculation_id", oldestID))
}
