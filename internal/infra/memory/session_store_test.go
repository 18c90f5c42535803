package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

type recordingDurable struct {
	mu          sync.Mutex
	sessions    map[string]domain.Session
	submissions map[string][]domain.Submission
	loadCalls   int
	failLoads   bool
}

func newRecordingDurable() *recordingDurable {
	return &recordingDurable{
		sessions:    make(map[string]domain.Session),
		submissions: make(map[string][]domain.Submission),
	}
}

func (d *recordingDurable) SaveSession(_ context.Context, sess domain.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[sess.ID] = sess
	return nil
}

func (d *recordingDurable) LoadSession(_ context.Context, id string) (domain.Session, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadCalls++
	if d.failLoads {
		return domain.Session{}, false, fmt.Errorf("backend down")
	}
	sess, ok := d.sessions[id]
	return sess, ok, nil
}

func (d *recordingDurable) SaveSubmission(_ context.Context, sessionID string, sub domain.Submission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions[sessionID] = append(d.submissions[sessionID], sub)
	return nil
}

func (d *recordingDurable) LoadSubmissions(_ context.Context, sessionID string) ([]domain.Submission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Submission, len(d.submissions[sessionID]))
	copy(out, d.submissions[sessionID])
	return out, nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSession(id string) domain.Session {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:        id,
		Category:  "General",
		CreatedAt: now,
		ClosesAt:  now.Add(10 * time.Minute),
		Questions: []domain.Question{
			{Text: "q?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1},
		},
	}
}

func TestGetServesFromCacheWithoutDurableHit(t *testing.T) {
	durable := newRecordingDurable()
	store := NewSessionStore(durable, testLog())

	if err := store.Create(context.Background(), sampleSession("ABC123")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Get(context.Background(), "ABC123"); err != nil {
		t.Fatalf("get: %v", err)
	}

	durable.mu.Lock()
	calls := durable.loadCalls
	durable.mu.Unlock()
	if calls != 0 {
		t.Fatalf("cache hit must not touch the durable backend, got %d loads", calls)
	}
}

func TestGetRehydratesOnCacheMiss(t *testing.T) {
	durable := newRecordingDurable()
	durable.sessions["COLD01"] = sampleSession("COLD01")
	store := NewSessionStore(durable, testLog())

	st, err := store.Get(context.Background(), "COLD01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Session().ID != "COLD01" {
		t.Fatalf("wrong session: %+v", st.Session())
	}
	if !st.NeedsHydration() {
		t.Fatalf("rehydrated session should carry an empty ledger placeholder")
	}

	// Second get is a warm hit on the same state.
	again, err := store.Get(context.Background(), "COLD01")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again != st {
		t.Fatalf("expected the cached state to be reused")
	}
}

func TestGetMissesReturnNotFound(t *testing.T) {
	store := NewSessionStore(newRecordingDurable(), testLog())
	if _, err := store.Get(context.Background(), "MISSING"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	memOnly := NewSessionStore(nil, testLog())
	if _, err := memOnly.Get(context.Background(), "MISSING"); err != domain.ErrSessionNotFound {
		t.Fatalf("memory-only: expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetTreatsDurableFailureAsNotFound(t *testing.T) {
	durable := newRecordingDurable()
	durable.failLoads = true
	store := NewSessionStore(durable, testLog())

	if _, err := store.Get(context.Background(), "ANY"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound on backend failure, got %v", err)
	}
}

func TestHydrateLedgerFillsHistoryOnce(t *testing.T) {
	durable := newRecordingDurable()
	durable.sessions["HYD001"] = sampleSession("HYD001")
	durable.submissions["HYD001"] = []domain.Submission{
		{SessionID: "HYD001", Fingerprint: "fp1", DisplayName: "A", Score: 1, SubmittedAt: time.Now()},
	}
	store := NewSessionStore(durable, testLog())

	st, err := store.Get(context.Background(), "HYD001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	store.HydrateLedger(context.Background(), st)
	if st.NeedsHydration() {
		t.Fatalf("expected ledger to be hydrated")
	}
	if len(st.Submissions()) != 1 {
		t.Fatalf("expected hydrated ledger of 1, got %d", len(st.Submissions()))
	}
	if st.ParticipantCount() != 1 {
		t.Fatalf("hydration must fill the participant set")
	}

	// A second hydration cannot duplicate history.
	store.HydrateLedger(context.Background(), st)
	if len(st.Submissions()) != 1 {
		t.Fatalf("repeat hydration duplicated the ledger")
	}
}

func TestExistsChecksBothTiers(t *testing.T) {
	durable := newRecordingDurable()
	durable.sessions["DUR001"] = sampleSession("DUR001")
	store := NewSessionStore(durable, testLog())

	if err := store.Create(context.Background(), sampleSession("MEM001")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !store.Exists(context.Background(), "MEM001") {
		t.Fatalf("expected cached id to exist")
	}
	if !store.Exists(context.Background(), "DUR001") {
		t.Fatalf("expected durable id to exist")
	}
	if store.Exists(context.Background(), "FREE01") {
		t.Fatalf("expected unused id to be free")
	}
}

func TestPersistSubmissionWritesBack(t *testing.T) {
	durable := newRecordingDurable()
	store := NewSessionStore(durable, testLog())
	if err := store.Create(context.Background(), sampleSession("WB0001")); err != nil {
		t.Fatalf("create: %v", err)
	}

	store.PersistSubmission(context.Background(), domain.Submission{
		SessionID: "WB0001", Fingerprint: "fp1", DisplayName: "A", Score: 2, SubmittedAt: time.Now(),
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		durable.mu.Lock()
		n := len(durable.submissions["WB0001"])
		durable.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("durable write-back never landed")
}
