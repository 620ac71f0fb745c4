package symptoms

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var sessionColumnNames = []string{
	"id", "user_id", "status", "input", "result", "confidence", "fallback",
	"error_code", "error_message", "processing_time_ms", "created_at", "updated_at", "completed_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := Session{
		ID:        "s-1",
		UserID:    "user-1",
		Status:    StatusPending,
		Input:     Input{Symptoms: []string{"fever"}, Language: "en"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO symptom_sessions").
		WithArgs("s-1", "user-1", "pending", []byte(`{"symptoms":["fever"],"language":"en"}`), now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(sessionColumnNames).AddRow(
		"s-1", "user-1", "completed",
		[]byte(`{"symptoms":["fever"],"language":"en"}`),
		[]byte(`{"possibleConditions":[{"name":"Flu","probability":60}],"recommendations":{"immediateActions":["rest"],"medicines":[],"homeRemedies":[]},"doctorConsultation":{"required":false},"confidence":70,"riskLevel":"low","fallback":true}`),
		70.0, true, nil, nil, int64(1200), now, now.Add(time.Second), now.Add(time.Second),
	)
	mock.ExpectQuery("SELECT (.+) FROM symptom_sessions").WithArgs("s-1").WillReturnRows(rows)

	s, err := repo.GetByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if s.Status != StatusCompleted || s.Analysis == nil || s.Analysis.PossibleConditions[0].Name != "Flu" {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Confidence == nil || *s.Confidence != 70 || !s.Fallback {
		t.Fatalf("expected confidence 70 with fallback, got %v/%v", s.Confidence, s.Fallback)
	}
	if s.Error != nil || s.CompletedAt == nil || s.ProcessingTimeMs != 1200 {
		t.Fatalf("unexpected terminal fields %+v", s)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM symptom_sessions").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoTransitionToFailed(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := now.Add(2 * time.Second)

	mock.ExpectQuery("SELECT (.+) FROM symptom_sessions").WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows(sessionColumnNames).AddRow(
			"s-1", "user-1", "processing", []byte(`{"symptoms":["fever"],"language":"en"}`),
			nil, nil, false, nil, nil, nil, now, now, nil,
		))
	mock.ExpectQuery("UPDATE symptom_sessions").
		WithArgs("s-1", "failed", nil, nil, nil, false, ErrorCodeLLMTimeout, "timed out", int64(2000), at, at).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).AddRow(
			"s-1", "user-1", "failed", []byte(`{"symptoms":["fever"],"language":"en"}`),
			nil, nil, false, ErrorCodeLLMTimeout, "timed out", int64(2000), now, at, at,
		))

	s, err := repo.TransitionTo(context.Background(), "s-1", Transition{
		To:               StatusFailed,
		Error:            &ErrorDetail{Code: ErrorCodeLLMTimeout, Message: "timed out"},
		ProcessingTimeMs: 2000,
		At:               at,
	})
	if err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	if s.Status != StatusFailed || s.Error == nil || s.Error.Code != ErrorCodeLLMTimeout || !s.Error.Retryable {
		t.Fatalf("unexpected failed session %+v", s)
	}
	if s.Analysis != nil || s.Confidence != nil {
		t.Fatalf("failed session must not carry a result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionRejectsTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM symptom_sessions").WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows(sessionColumnNames).AddRow(
			"s-1", "user-1", "failed", []byte(`{}`),
			nil, nil, false, ErrorCodeLLMParse, "bad", int64(10), now, now, now,
		))

	_, err := repo.TransitionTo(context.Background(), "s-1", Transition{To: StatusProcessing, At: now})
	if !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM symptom_sessions").WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows(sessionColumnNames).AddRow(
			"s-1", "user-1", "processing", []byte(`{}`),
			nil, nil, false, nil, nil, nil, now, now, nil,
		))
	mock.ExpectQuery("UPDATE symptom_sessions").WillReturnError(sql.ErrNoRows)

	_, err := repo.TransitionTo(context.Background(), "s-1", Transition{
		To:    StatusFailed,
		Error: &ErrorDetail{Code: ErrorCodeInternal},
		At:    now,
	})
	if !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
}

func TestPGRepoListByUserFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	from := now.Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", "completed", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("user-1", "completed", from, 5, 10).
		WillReturnRows(sqlmock.NewRows(sessionColumnNames).AddRow(
			"s-11", "user-1", "completed", []byte(`{"symptoms":["cough"],"language":"en"}`),
			[]byte(`{"possibleConditions":[{"name":"Cold","probability":50}],"recommendations":{"immediateActions":["rest"]},"doctorConsultation":{"required":false},"confidence":60,"riskLevel":"low"}`),
			60.0, false, nil, nil, int64(900), now, now, now,
		))

	sessions, total, err := repo.ListByUser(context.Background(), "user-1", Query{
		Page:    3,
		Limit:   5,
		Filters: Filters{Status: StatusCompleted, DateFrom: &from},
	})
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if total != 11 || len(sessions) != 1 || sessions[0].ID != "s-11" {
		t.Fatalf("unexpected page total=%d sessions=%+v", total, sessions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoStats(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("AVG\\(confidence\\)").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg_conf", "avg_time"}).AddRow(4, 71.333333, 1500.0))
	mock.ExpectQuery("GROUP BY risk_level").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"risk_level", "count"}).AddRow("low", 2).AddRow("high", 1).AddRow("bogus", 7))

	st, err := repo.Stats(context.Background(), "user-1", Filters{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalAnalyses != 4 || st.AvgConfidence != 71.33 || st.AvgProcessingTime != 1500 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.RiskLevels[RiskLow] != 2 || st.RiskLevels[RiskHigh] != 1 || st.RiskLevels[RiskMedium] != 0 || len(st.RiskLevels) != 4 {
		t.Fatalf("unexpected histogram %v", st.RiskLevels)
	}
}

func TestPGRepoFailStale(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-90 * time.Second)
	detail := ErrorDetail{Code: ErrorCodeLLMTimeout, Message: clientMessage(ErrorCodeLLMTimeout)}

	mock.ExpectExec(`(?s)UPDATE symptom_sessions\s+SET status = 'failed'.*WHERE status IN \('pending', 'processing'\) AND created_at < \$4`).
		WithArgs(ErrorCodeLLMTimeout, detail.Message, now, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.FailStale(context.Background(), cutoff, detail, now)
	if err != nil {
		t.Fatalf("FailStale: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
