package symptoms

import (
	"context"
	"time"
)

// Repo persists sessions. TransitionTo must reject changes to terminal
// sessions with ErrTerminalState and must make the terminal record visible to
// subsequent reads once it returns.
type Repo interface {
	Create(ctx context.Context, session Session) error
	TransitionTo(ctx context.Context, sessionID string, t Transition) (Session, error)
	GetByID(ctx context.Context, sessionID string) (Session, error)
	ListByUser(ctx context.Context, userID string, q Query) ([]Session, int, error)
	Stats(ctx context.Context, userID string, f Filters) (Stats, error)
	// FailStale fails every pending or processing session created before
	// cutoff and returns how many it changed.
	FailStale(ctx context.Context, cutoff time.Time, detail ErrorDetail, at time.Time) (int, error)
}

func matchesFilters(s Session, f Filters) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.RiskLevel != "" && (s.Analysis == nil || s.Analysis.RiskLevel != f.RiskLevel) {
		return false
	}
	if f.DateFrom != nil && s.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && s.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}
