package symptoms

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"medicare-backend/internal/llm"
	"medicare-backend/internal/notify"
)

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(payload)
}

// scriptedLLM returns one scripted outcome per call; the last one repeats.
type scriptedLLM struct {
	mu      sync.Mutex
	steps   []llmStep
	calls   int
	prompts []llm.Request
}

type llmStep struct {
	text  string
	err   error
	block bool
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	step := s.steps[idx]
	s.calls++
	s.prompts = append(s.prompts, req)
	s.mu.Unlock()

	if step.block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if step.err != nil {
		return llm.Response{}, step.err
	}
	return llm.Response{Text: step.text, Model: "test-model"}, nil
}

func (s *scriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingNotifier keeps every published event in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	users  []string
}

func (r *recordingNotifier) Publish(userID string, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.users = append(r.users, userID)
}

func (r *recordingNotifier) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}

// failingRepo wraps MemoryRepo and fails transitions to the given status.
type failingRepo struct {
	*MemoryRepo
	failTo    Status
	failAll   bool
	failCount int
}

var errDiskFull = errors.New("disk full")

func (r *failingRepo) TransitionTo(ctx context.Context, id string, t Transition) (Session, error) {
	if r.failAll || t.To == r.failTo {
		r.failCount++
		return Session{}, errDiskFull
	}
	return r.MemoryRepo.TransitionTo(ctx, id, t)
}

type panickingVoice struct{}

func (panickingVoice) ExtractSymptoms(context.Context, string, string) []string {
	panic("speech model crashed")
}

type staticVoice []string

func (v staticVoice) ExtractSymptoms(context.Context, string, string) []string { return v }

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	var mu sync.Mutex
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return ctx.Err()
	}
}

func newTestService(client llm.Client, repo Repo, n notify.Publisher) *Service {
	if repo == nil {
		repo = NewMemoryRepo()
	}
	return &Service{
		Repo:     repo,
		Analyzer: NewAdvisor(client),
		Notifier: n,
		Retry:    RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
		Timeout:  5 * time.Second,
	}
}

func intPtr(v int) *int { return &v }

func waitSession(t *testing.T, h *Handle) (Session, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatalf("session %s did not reach a terminal state", h.SessionID())
	}
	return s, err
}
