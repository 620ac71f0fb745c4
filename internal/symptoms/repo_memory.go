package symptoms

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores sessions in memory and is safe for concurrent use.
// Stored values are deep copies, so callers never share state with the store.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Session
	byUser map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Session),
		byUser: make(map[string][]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, session Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp, err := cloneSession(session)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[session.ID]; exists {
		return fmt.Errorf("%w: duplicate session id %s", ErrInvalidTransition, session.ID)
	}
	r.byID[session.ID] = cp
	r.byUser[session.UserID] = append(r.byUser[session.UserID], session.ID)
	return nil
}

func (r *MemoryRepo) TransitionTo(ctx context.Context, sessionID string, t Transition) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if err := checkTransition(current.Status, t); err != nil {
		return Session{}, err
	}
	next, err := cloneSession(applyTransition(current, t))
	if err != nil {
		return Session{}, err
	}
	r.byID[sessionID] = next
	return cloneSession(next)
}

func (r *MemoryRepo) GetByID(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	s, ok := r.byID[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return cloneSession(s)
}

// ListByUser returns one page of matching sessions, newest first, and the
// total number of matches.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, q Query) ([]Session, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	q = q.normalized()
	matched := r.filtered(userID, q.Filters)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := q.offset()
	if start < 0 || start >= total {
		return []Session{}, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	out := make([]Session, 0, end-start)
	for _, s := range matched[start:end] {
		cp, err := cloneSession(s)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, cp)
	}
	return out, total, nil
}

func (r *MemoryRepo) FailStale(ctx context.Context, cutoff time.Time, detail ErrorDetail, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.byID {
		if s.Status.Terminal() || !s.CreatedAt.Before(cutoff) {
			continue
		}
		d := detail
		r.byID[id] = applyTransition(s, Transition{
			To:               StatusFailed,
			Error:            &d,
			ProcessingTimeMs: at.Sub(s.CreatedAt).Milliseconds(),
			At:               at,
		})
		n++
	}
	return n, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, userID string, f Filters) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return computeStats(r.filtered(userID, f)), nil
}

func (r *MemoryRepo) filtered(userID string, f Filters) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Session{}
	for _, id := range r.byUser[userID] {
		s := r.byID[id]
		if matchesFilters(s, f) {
			out = append(out, s)
		}
	}
	return out
}

func cloneSession(s Session) (Session, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}
