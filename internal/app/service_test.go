package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
	"github.com/IrishDec/heiyuquiz-server/internal/domain"
	"github.com/IrishDec/heiyuquiz-server/internal/infra/memory"
)

type stubTrivia struct{}

func (stubTrivia) Fetch(_ context.Context, _ string, amount int) ([]app.TriviaItem, error) {
	items := make([]app.TriviaItem, amount)
	for i := range items {
		items[i] = app.TriviaItem{
			Question:         fmt.Sprintf("Stub question %d?", i),
			IncorrectAnswers: []string{"w1", "w2", "w3"},
			CorrectAnswer:    "right",
		}
	}
	return items, nil
}

type stubFilter struct{}

func (stubFilter) Sanitize(raw string) (string, bool) { return raw, true }

type stubPool struct{}

func (stubPool) Lookup(_, _ string) (domain.Question, bool) { return domain.Question{}, false }

type stubCategories struct{}

func (stubCategories) CategoryID(string) string { return "" }

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	service *app.SessionLifecycle
	store   *memory.SessionStore
	now     time.Time
	mu      sync.Mutex
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func newEnv(t *testing.T, durable app.DurableBackend, opts app.Options) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	log := quietLog()
	supplier := app.NewQuestionSupplier(
		stubTrivia{}, nil, stubFilter{}, stubPool{}, stubCategories{},
		memory.NewNoveltyStore(time.Hour), rand.New(rand.NewSource(7)), log,
	)
	env.store = memory.NewSessionStore(durable, log)
	env.service = app.NewSessionLifecycle(env.store, supplier, opts, env.clock, rand.New(rand.NewSource(7)), log)
	return env
}

func mustCreate(t *testing.T, env *testEnv, amount int) app.CreateResult {
	t.Helper()
	result, err := env.service.Create(context.Background(), app.CreateRequest{
		Category: "General",
		Amount:   amount,
		Duration: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return result
}

func TestCreateAndFetch(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})

	result := mustCreate(t, env, 5)
	if result.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if result.Provider != domain.ProviderTrivia {
		t.Fatalf("expected trivia provider, got %q", result.Provider)
	}

	fetched, err := env.service.Fetch(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(fetched.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(fetched.Questions))
	}
	if !fetched.Open {
		t.Fatalf("expected session to be open")
	}

	again, err := env.service.Fetch(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	for i := range fetched.Questions {
		if fetched.Questions[i].Text != again.Questions[i].Text {
			t.Fatalf("fetch is not idempotent at question %d", i)
		}
	}
}

func TestFetchUnknownSession(t *testing.T) {
	env := newEnv(t, nil, app.Options{})
	if _, err := env.service.Fetch(context.Background(), "NOPE42"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitScoresAgainstAnswers(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})
	result := mustCreate(t, env, 3)

	answers, err := env.service.Answers(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("answers failed: %v", err)
	}

	picks := []any{float64(answers[0].CorrectIndex), float64((answers[1].CorrectIndex + 1) % 4), nil}
	score, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("1.2.3.4", "Alice"), "Alice", picks)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})
	result := mustCreate(t, env, 3)

	fp := app.Fingerprint("1.2.3.4", "Alice")
	if _, err := env.service.Submit(ctx, result.SessionID, fp, "Alice", nil); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := env.service.Submit(ctx, result.SessionID, fp, "Alice", nil); err != domain.ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	res, err := env.service.Results(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("duplicate must not grow the ledger, got %d rows", len(res.Rows))
	}
}

func TestSubmitTruncatesNameOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})
	result := mustCreate(t, env, 3)

	name := strings.Repeat("é", 30)
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", name), name, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := env.service.Results(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	got := res.Rows[0].DisplayName
	if !utf8.ValidString(got) {
		t.Fatalf("stored name is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 24 {
		t.Fatalf("expected 24 runes after truncation, got %d", n)
	}
}

func TestCapacityGate(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 2})
	result := mustCreate(t, env, 3)

	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", "A"), "A", nil); err != nil {
		t.Fatalf("submit A: %v", err)
	}
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h2", "B"), "B", nil); err != nil {
		t.Fatalf("submit B: %v", err)
	}
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h3", "C"), "C", nil); err != domain.ErrAtCapacity {
		t.Fatalf("expected ErrAtCapacity for new fingerprint, got %v", err)
	}
	// A previously admitted fingerprint is still recognized at capacity: it
	// trips the duplicate gate, not the capacity gate.
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", "A"), "A", nil); err != domain.ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission for known fingerprint, got %v", err)
	}
}

func TestResultsRanking(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})
	result := mustCreate(t, env, 3)

	answers, _ := env.service.Answers(ctx, result.SessionID)
	allRight := make([]any, len(answers))
	for i, q := range answers {
		allRight[i] = float64(q.CorrectIndex)
	}

	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", "Slow"), "Slow", allRight); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.advance(time.Second)
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h2", "Fast"), "Fast", allRight); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.advance(time.Second)
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h3", "Zero"), "Zero", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := env.service.Results(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	want := []string{"Slow", "Fast", "Zero"}
	for i, name := range want {
		if res.Rows[i].DisplayName != name {
			t.Fatalf("rank %d: expected %s, got %s", i, name, res.Rows[i].DisplayName)
		}
	}
}

func TestSubmitAfterCloseAllowedByDefault(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10})
	result := mustCreate(t, env, 3)

	env.advance(time.Hour)
	fetched, _ := env.service.Fetch(ctx, result.SessionID)
	if fetched.Open {
		t.Fatalf("expected closed flag after closesAt")
	}
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", "Late"), "Late", nil); err != nil {
		t.Fatalf("late submit should pass with enforcement off: %v", err)
	}
}

func TestSubmitAfterCloseRejectedWhenEnforced(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 10, EnforceCloseOnSubmit: true})
	result := mustCreate(t, env, 3)

	env.advance(time.Hour)
	if _, err := env.service.Submit(ctx, result.SessionID, app.Fingerprint("h1", "Late"), "Late", nil); err != domain.ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestConcurrentSubmissionsHoldInvariants(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, nil, app.Options{MaxParticipants: 5})
	result := mustCreate(t, env, 3)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 10 distinct fingerprints, each attempted twice.
			fp := app.Fingerprint(fmt.Sprintf("host%d", i%10), "P")
			_, errs[i] = env.service.Submit(ctx, result.SessionID, fp, "P", nil)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else if err != domain.ErrDuplicateSubmission && err != domain.ErrAtCapacity {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 5 {
		t.Fatalf("expected exactly maxParticipants accepted, got %d", accepted)
	}

	res, _ := env.service.Results(ctx, result.SessionID)
	if len(res.Rows) != 5 {
		t.Fatalf("ledger must hold exactly 5 rows, got %d", len(res.Rows))
	}
}
