package symptoms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const sessionColumns = `id, user_id, status, input, result, confidence, fallback,
       error_code, error_message, processing_time_ms, created_at, updated_at, completed_at`

// Create inserts a new pending session.
func (r *PGRepo) Create(ctx context.Context, s Session) error {
	const query = `
INSERT INTO symptom_sessions (id, user_id, status, input, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	input, err := json.Marshal(s.Input)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, s.ID, s.UserID, string(s.Status), input, s.CreatedAt, s.UpdatedAt)
	return err
}

// TransitionTo applies t. The terminal guard lives in the WHERE clause so a
// concurrent writer cannot move a session out of a terminal state.
func (r *PGRepo) TransitionTo(ctx context.Context, sessionID string, t Transition) (Session, error) {
	current, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := checkTransition(current.Status, t); err != nil {
		return Session{}, err
	}

	var (
		result     any
		confidence any
		riskLevel  any
		fallback   bool
		errCode    any
		errMessage any
		procTime   any
		completed  any
	)
	switch t.To {
	case StatusCompleted:
		raw, err := json.Marshal(t.Analysis)
		if err != nil {
			return Session{}, err
		}
		result = raw
		confidence = *t.Confidence
		riskLevel = string(t.Analysis.RiskLevel)
		fallback = t.Analysis.Fallback
		procTime = t.ProcessingTimeMs
		completed = t.At
	case StatusFailed:
		errCode = t.Error.Code
		errMessage = t.Error.Message
		procTime = t.ProcessingTimeMs
		completed = t.At
	}

	query := `
UPDATE symptom_sessions
SET status = $2, result = $3, confidence = $4, risk_level = $5, fallback = $6,
    error_code = $7, error_message = $8, processing_time_ms = $9,
    completed_at = $10, updated_at = $11
WHERE id = $1 AND status NOT IN ('completed', 'failed')
RETURNING ` + sessionColumns
	row := r.DB.QueryRowContext(ctx, query,
		sessionID,
		string(t.To),
		result,
		confidence,
		riskLevel,
		fallback,
		errCode,
		errMessage,
		procTime,
		completed,
		t.At,
	)
	s, err := scanSession(row)
	if errors.Is(err, ErrNotFound) {
		// The row exists (read above), so another writer finished it first.
		return Session{}, ErrTerminalState
	}
	return s, err
}

// FailStale fails sessions a previous process left unfinished.
func (r *PGRepo) FailStale(ctx context.Context, cutoff time.Time, detail ErrorDetail, at time.Time) (int, error) {
	const query = `
UPDATE symptom_sessions
SET status = 'failed', error_code = $1, error_message = $2,
    processing_time_ms = (EXTRACT(EPOCH FROM ($3::timestamptz - created_at)) * 1000)::bigint,
    completed_at = $3, updated_at = $3
WHERE status IN ('pending', 'processing') AND created_at < $4`
	res, err := r.DB.ExecContext(ctx, query, detail.Code, detail.Message, at, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *PGRepo) GetByID(ctx context.Context, sessionID string) (Session, error) {
	query := `SELECT ` + sessionColumns + `
FROM symptom_sessions
WHERE id = $1
LIMIT 1`
	return scanSession(r.DB.QueryRowContext(ctx, query, sessionID))
}

// ListByUser returns one page of matching sessions, newest first, and the
// total number of matches.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, q Query) ([]Session, int, error) {
	q = q.normalized()
	where, args := filterClause(userID, q.Filters)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM symptom_sessions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, q.Limit, q.offset())
	query := fmt.Sprintf(`SELECT %s
FROM symptom_sessions
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, sessionColumns, where, len(args)-1, len(args))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PGRepo) Stats(ctx context.Context, userID string, f Filters) (Stats, error) {
	where, args := filterClause(userID, f)
	st := Stats{RiskLevels: emptyRiskLevels()}

	aggregate := `
SELECT COUNT(*),
       COALESCE(AVG(confidence) FILTER (WHERE status = 'completed'), 0),
       COALESCE(AVG(processing_time_ms) FILTER (WHERE status = 'completed'), 0)
FROM symptom_sessions
WHERE ` + where
	if err := r.DB.QueryRowContext(ctx, aggregate, args...).Scan(&st.TotalAnalyses, &st.AvgConfidence, &st.AvgProcessingTime); err != nil {
		return Stats{}, err
	}
	st.AvgConfidence = round2(st.AvgConfidence)
	st.AvgProcessingTime = round2(st.AvgProcessingTime)

	histogram := `
SELECT risk_level, COUNT(*)
FROM symptom_sessions
WHERE ` + where + ` AND status = 'completed' AND risk_level IS NOT NULL
GROUP BY risk_level`
	rows, err := r.DB.QueryContext(ctx, histogram, args...)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return Stats{}, err
		}
		if rl := RiskLevel(level); rl.Valid() {
			st.RiskLevels[rl] = count
		}
	}
	return st, rows.Err()
}

func filterClause(userID string, f Filters) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.RiskLevel != "" {
		add("risk_level = $%d", string(f.RiskLevel))
	}
	if f.DateFrom != nil {
		add("created_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("created_at <= $%d", *f.DateTo)
	}
	return strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s          Session
		status     string
		input      []byte
		result     []byte
		confidence sql.NullFloat64
		errCode    sql.NullString
		errMessage sql.NullString
		procTime   sql.NullInt64
		completed  sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&status,
		&input,
		&result,
		&confidence,
		&s.Fallback,
		&errCode,
		&errMessage,
		&procTime,
		&s.CreatedAt,
		&s.UpdatedAt,
		&completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	s.Status = Status(status)
	if len(input) > 0 {
		if err := json.Unmarshal(input, &s.Input); err != nil {
			return Session{}, fmt.Errorf("decode input: %w", err)
		}
	}
	if len(result) > 0 {
		var a Analysis
		if err := json.Unmarshal(result, &a); err != nil {
			return Session{}, fmt.Errorf("decode result: %w", err)
		}
		s.Analysis = &a
	}
	if confidence.Valid {
		v := confidence.Float64
		s.Confidence = &v
	}
	if errCode.Valid {
		s.Error = &ErrorDetail{
			Code:      errCode.String,
			Message:   errMessage.String,
			Retryable: retryableCode(errCode.String),
		}
	}
	if procTime.Valid {
		s.ProcessingTimeMs = procTime.Int64
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return s, nil
}
