package symptoms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medicare-backend/internal/llm"
	"medicare-backend/internal/notify"
	"medicare-backend/internal/shared/metrics"
	"medicare-backend/internal/shared/telemetry"
	"medicare-backend/internal/shared/util"
)

const (
	defaultTimeout = 90 * time.Second
	writeTimeout   = 5 * time.Second
)

// Progress steps, in emission order.
const (
	stepIntake    = "Validating symptoms"
	stepVoice     = "Processing voice input"
	stepAI        = "Consulting AI model"
	stepSynthesis = "Synthesizing recommendations"
	stepFinalize  = "Finalizing results"
)

// Policy decides what a provider parse failure does to a session.
type Policy int

const (
	// PolicyStrict fails the session.
	PolicyStrict Policy = iota
	// PolicyDegraded completes the session with the static advisory.
	PolicyDegraded
)

func (p Policy) String() string {
	if p == PolicyDegraded {
		return "degraded"
	}
	return "strict"
}

type SubmitOptions struct {
	Policy Policy
}

// VoiceExtractor turns a transcript into symptom phrases. It must not fail;
// an empty result means nothing was found.
type VoiceExtractor interface {
	ExtractSymptoms(ctx context.Context, transcript, language string) []string
}

// Service drives analysis sessions from intake to a terminal state.
type Service struct {
	Repo     Repo
	Analyzer Analyzer
	Voice    VoiceExtractor
	Notifier notify.Publisher
	Retry    RetryPolicy
	// Timeout bounds one session end to end, retries included.
	Timeout time.Duration
	Now     func() time.Time

	mu       sync.Mutex
	inflight sync.WaitGroup
	cancels  map[string]context.CancelCauseFunc
	draining bool
}

// Handle follows one submitted session.
type Handle struct {
	sessionID string
	done      chan struct{}
	session   Session
	err       error
	once      sync.Once
}

func (h *Handle) SessionID() string { return h.sessionID }

// Done is closed once the session reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the session is terminal and returns the terminal record.
// A failed session yields a *FailedError. If ctx ends first, Wait returns
// ctx's error and processing continues in the background.
func (h *Handle) Wait(ctx context.Context) (Session, error) {
	select {
	case <-h.done:
		return h.session, h.err
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

func (h *Handle) finish(s Session, err error) {
	h.once.Do(func() {
		h.session = s
		h.err = err
		close(h.done)
	})
}

// Submit validates in, records a pending session and starts processing it.
// Validation and persistence errors are returned before any processing starts.
func (s *Service) Submit(ctx context.Context, userID string, in Input, opts SubmitOptions) (*Handle, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	input, err := Validate(in)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancelCause(backgroundWithRequestID(ctx))
	if !s.track(id, cancel) {
		cancel(ErrShuttingDown)
		return nil, ErrShuttingDown
	}

	now := s.now()
	session := Session{
		ID:        id,
		UserID:    userID,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, session); err != nil {
		s.untrack(id)
		telemetry.Error("symptoms.create_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"user_id":    userID,
			"error":      util.ErrorText(err, 500),
		})
		return nil, fmt.Errorf("%w: create session: %v", ErrPersistence, err)
	}
	s.logStatus(ctx, session, "->pending", nil)

	h := &Handle{sessionID: session.ID, done: make(chan struct{})}
	go s.run(runCtx, h, session, opts)
	return h, nil
}

func (s *Service) run(parent context.Context, h *Handle, session Session, opts SubmitOptions) {
	defer s.untrack(session.ID)
	ctx, cancel := context.WithTimeout(parent, s.timeout())
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, h, session, fmt.Errorf("panic: %v", r))
		}
	}()

	processing, err := s.transition(ctx, session.ID, Transition{To: StatusProcessing, At: s.now()})
	if err != nil {
		s.fail(ctx, h, session, fmt.Errorf("%w: set processing: %v", ErrPersistence, err))
		return
	}
	session = processing
	metrics.IncAnalysisStarted()
	s.logStatus(ctx, session, "pending->processing", nil)
	s.progress(session, 10, stepIntake)

	symptoms := session.Input.Symptoms
	if v := session.Input.VoiceInput; v != nil && v.Transcript != "" {
		s.progress(session, 25, stepVoice)
		symptoms = mergeSymptoms(symptoms, s.extractVoice(ctx, session, v.Transcript))
	}

	s.progress(session, 45, stepAI)
	pc := newPromptContext(session.Input, symptoms)
	analysis, attempts, err := invokeWithRetry(ctx, s.Retry, session.ID, func(ctx context.Context) (Analysis, error) {
		if s.Analyzer == nil {
			return Analysis{}, &TransportError{Err: llm.ErrNotConfigured}
		}
		return s.Analyzer.Invoke(ctx, pc)
	})
	if err != nil {
		var parse *ParseError
		if !errors.As(err, &parse) || opts.Policy != PolicyDegraded {
			s.fail(ctx, h, session, err)
			return
		}
		telemetry.Warn("symptoms.fallback", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"user_id":    session.UserID,
			"session_id": session.ID,
			"attempts":   attempts,
			"error":      util.ErrorText(err, 500),
		})
		analysis = fallbackAnalysis(session.Input, symptoms)
	}

	s.progress(session, 80, stepSynthesis)
	analysis = normalizeAnalysis(analysis)
	confidence := analysis.Confidence

	s.progress(session, 95, stepFinalize)
	now := s.now()
	completed, err := s.transition(ctx, session.ID, Transition{
		To:               StatusCompleted,
		Analysis:         &analysis,
		Confidence:       &confidence,
		ProcessingTimeMs: now.Sub(session.CreatedAt).Milliseconds(),
		At:               now,
	})
	if err != nil {
		s.fail(ctx, h, session, fmt.Errorf("%w: set completed: %v", ErrPersistence, err))
		return
	}

	metrics.IncAnalysisCompleted(analysis.Fallback)
	metrics.ObserveAnalysisDurationMs(float64(completed.ProcessingTimeMs))
	s.logStatus(ctx, completed, "processing->completed", map[string]any{
		"duration_ms": completed.ProcessingTimeMs,
		"attempts":    attempts,
		"fallback":    analysis.Fallback,
	})
	s.publish(completed.UserID, notify.Event{
		Type:      notify.EventCompleted,
		SessionID: completed.ID,
		Progress:  100,
		Analysis:  completed.Analysis,
		Timestamp: s.now(),
	})
	h.finish(completed, nil)
}

// fail records the failure, emits the terminal event and releases waiters.
// If the failed state cannot be written the caller still gets an error.
func (s *Service) fail(ctx context.Context, h *Handle, session Session, cause error) {
	if errors.Is(context.Cause(ctx), ErrShuttingDown) && !errors.Is(cause, ErrShuttingDown) {
		cause = fmt.Errorf("%w: %v", ErrShuttingDown, cause)
	}
	code, retryable := classifyFailure(cause)
	now := s.now()
	detail := &ErrorDetail{Code: code, Message: clientMessage(code), Retryable: retryable}

	failed, err := s.transition(ctx, session.ID, Transition{
		To:               StatusFailed,
		Error:            detail,
		ProcessingTimeMs: now.Sub(session.CreatedAt).Milliseconds(),
		At:               now,
	})
	if err != nil {
		telemetry.Error("symptoms.fail_write_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"session_id": session.ID,
			"error":      util.ErrorText(err, 500),
			"cause":      util.ErrorText(cause, 500),
		})
		failed = applyTransition(session, Transition{To: StatusFailed, Error: detail, At: now})
		if !errors.Is(cause, ErrPersistence) {
			cause = fmt.Errorf("%w: set failed: %v (cause: %v)", ErrPersistence, err, cause)
			code = ErrorCodeStorage
			detail.Code, detail.Message = code, clientMessage(code)
		}
	}

	metrics.IncAnalysisFailed(code)
	metrics.ObserveAnalysisDurationMs(float64(now.Sub(session.CreatedAt).Milliseconds()))
	s.logStatus(ctx, failed, string(session.Status)+"->failed", map[string]any{
		"duration_ms": now.Sub(session.CreatedAt).Milliseconds(),
		"error_code":  code,
		"error":       util.ErrorText(cause, 500),
	})
	s.publish(session.UserID, notify.Event{
		Type:      notify.EventFailed,
		SessionID: session.ID,
		Error:     &notify.EventError{Code: detail.Code, Message: detail.Message},
		Timestamp: s.now(),
	})
	h.finish(failed, &FailedError{SessionID: session.ID, Code: code, Err: cause})
}

func (s *Service) track(id string, cancel context.CancelCauseFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	if s.cancels == nil {
		s.cancels = make(map[string]context.CancelCauseFunc)
	}
	s.cancels[id] = cancel
	s.inflight.Add(1)
	return true
}

func (s *Service) untrack(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	cancel(nil)
	s.inflight.Done()
}

// Drain stops accepting submissions and waits for running sessions. When ctx
// ends first, the remaining sessions are cancelled and recorded as failed
// before Drain returns.
func (s *Service) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	pending := len(s.cancels)
	for _, cancel := range s.cancels {
		cancel(ErrShuttingDown)
	}
	s.mu.Unlock()
	telemetry.Warn("symptoms.drain_cancelled", map[string]any{"sessions": pending})

	select {
	case <-done:
		return nil
	case <-time.After(2 * writeTimeout):
		return fmt.Errorf("drain: %d sessions did not finish", pending)
	}
}

// ReapStale fails sessions still pending or processing after the session
// timeout, such as those orphaned by a crashed process.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	now := s.now()
	detail := ErrorDetail{
		Code:      ErrorCodeLLMTimeout,
		Message:   clientMessage(ErrorCodeLLMTimeout),
		Retryable: true,
	}
	n, err := s.Repo.FailStale(ctx, now.Add(-s.timeout()), detail, now)
	if err != nil {
		return 0, fmt.Errorf("%w: reap stale sessions: %v", ErrPersistence, err)
	}
	if n > 0 {
		telemetry.Warn("symptoms.reaped_stale", map[string]any{"sessions": n})
	}
	return n, nil
}

// transition writes with a context detached from the session deadline so a
// timed-out session can still be recorded as failed.
func (s *Service) transition(ctx context.Context, sessionID string, t Transition) (Session, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	return s.Repo.TransitionTo(wctx, sessionID, t)
}

func (s *Service) extractVoice(ctx context.Context, session Session, transcript string) (out []string) {
	if s.Voice == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			telemetry.Warn("symptoms.voice_failed", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"session_id": session.ID,
				"error":      fmt.Sprint(r),
			})
			out = nil
		}
	}()
	return s.Voice.ExtractSymptoms(ctx, transcript, session.Input.Language)
}

func (s *Service) progress(session Session, pct int, step string) {
	s.publish(session.UserID, notify.Event{
		Type:      notify.EventProgress,
		SessionID: session.ID,
		Progress:  pct,
		Step:      step,
		Timestamp: s.now(),
	})
}

func (s *Service) publish(userID string, ev notify.Event) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(userID, ev)
}

func (s *Service) logStatus(ctx context.Context, session Session, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           session.UserID,
		"session_id":        session.ID,
		"status":            string(session.Status),
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("symptoms.status", fields)
}

// Get returns a session owned by userID. Sessions of other users are reported
// as ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	if strings.TrimSpace(userID) == "" {
		return Session{}, ErrUnauthenticated
	}
	if strings.TrimSpace(sessionID) == "" {
		return Session{}, ErrNotFound
	}
	session, err := s.Repo.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.UserID != userID {
		return Session{}, ErrNotFound
	}
	return session, nil
}

// History returns one page of the user's sessions plus statistics over the
// same filters.
func (s *Service) History(ctx context.Context, userID string, q Query) (History, error) {
	if strings.TrimSpace(userID) == "" {
		return History{}, ErrUnauthenticated
	}
	q = q.normalized()
	sessions, total, err := s.Repo.ListByUser(ctx, userID, q)
	if err != nil {
		return History{}, err
	}
	stats, err := s.Repo.Stats(ctx, userID, q.Filters)
	if err != nil {
		return History{}, err
	}
	return History{Sessions: sessions, Total: total, Query: q, Stats: stats}, nil
}

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultTimeout
	}
	return s.Timeout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
