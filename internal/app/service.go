package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

const (
	sessionIDLength    = 6
	sessionIDAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	sessionIDAttempts  = 5
	maxDisplayNameLen  = 24
	defaultDisplayName = "Player"
)

// Fingerprint derives the stable participant identity from the request
// origin and display name. The raw origin never leaves the process: only
// the hash is kept in the ledger and the durable backend.
func Fingerprint(origin, displayName string) string {
	raw := origin + ":" + strings.ToLower(strings.TrimSpace(displayName))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Options configure the session lifecycle policies.
type Options struct {
	MaxParticipants      int
	EnforceCloseOnSubmit bool
}

// SessionLifecycle wires the supplier, store, admission gates, and scoring
// into the four player-facing operations.
type SessionLifecycle struct {
	store    SessionRepository
	supplier *QuestionSupplier
	opts     Options
	clock    func() time.Time
	log      *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewSessionLifecycle(store SessionRepository, supplier *QuestionSupplier, opts Options, clock func() time.Time, rnd *rand.Rand, log *slog.Logger) *SessionLifecycle {
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = 300
	}
	if clock == nil {
		clock = time.Now
	}
	return &SessionLifecycle{
		store:    store,
		supplier: supplier,
		opts:     opts,
		clock:    clock,
		rnd:      rnd,
		log:      log,
	}
}

// CreateRequest carries host parameters for a new session.
type CreateRequest struct {
	Category   string
	Topic      string
	Country    string
	Amount     int
	Duration   time.Duration
	Difficulty string
}

// CreateResult reports the new session's handle.
type CreateResult struct {
	SessionID string
	ClosesAt  time.Time
	Provider  domain.Provider
}

// Create acquires questions, mints a collision-checked id, and registers the
// session in the store.
func (s *SessionLifecycle) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if req.Duration <= 0 {
		req.Duration = 10 * time.Minute
	}

	questions, provider, err := s.supplier.Acquire(ctx, AcquireRequest{
		Category:   req.Category,
		Topic:      req.Topic,
		Country:    req.Country,
		Amount:     req.Amount,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return CreateResult{}, err
	}

	now := s.clock()
	sess := domain.Session{
		ID:        s.newSessionID(ctx),
		Category:  req.Category,
		Topic:     strings.TrimSpace(req.Topic),
		Country:   req.Country,
		CreatedAt: now,
		ClosesAt:  now.Add(req.Duration),
		Questions: questions,
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return CreateResult{}, fmt.Errorf("register session: %w", err)
	}

	s.log.Info("session created",
		"session", sess.ID,
		"category", sess.Category,
		"provider", string(provider),
		"questions", len(questions),
	)
	return CreateResult{SessionID: sess.ID, ClosesAt: sess.ClosesAt, Provider: provider}, nil
}

// FetchResult is the answer-free player view of a session.
type FetchResult struct {
	ID        string
	Category  string
	ClosesAt  time.Time
	Open      bool
	Questions []domain.PublicQuestion
}

// Fetch returns the question set without correct indexes.
func (s *SessionLifecycle) Fetch(ctx context.Context, id string) (FetchResult, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return FetchResult{}, err
	}
	sess := st.Session()

	public := make([]domain.PublicQuestion, len(sess.Questions))
	for i, q := range sess.Questions {
		public[i] = q.Public()
	}
	return FetchResult{
		ID:        sess.ID,
		Category:  sess.Category,
		ClosesAt:  sess.ClosesAt,
		Open:      sess.Open(s.clock()),
		Questions: public,
	}, nil
}

// Submit admits the fingerprint, scores the picks, and appends to the
// ledger. Returns the score on success.
func (s *SessionLifecycle) Submit(ctx context.Context, id, fingerprint, displayName string, picks []any) (int, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	now := s.clock()
	if s.opts.EnforceCloseOnSubmit && !st.Session().Open(now) {
		return 0, domain.ErrSessionClosed
	}

	s.store.HydrateLedger(ctx, st)

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = defaultDisplayName
	}
	// Truncate on rune boundaries so multi-byte names stay valid UTF-8.
	if runes := []rune(name); len(runes) > maxDisplayNameLen {
		name = string(runes[:maxDisplayNameLen])
	}

	sub, err := st.Submit(fingerprint, name, s.opts.MaxParticipants, func(qs []domain.Question) int {
		return Score(qs, picks)
	}, now)
	if err != nil {
		return 0, err
	}
	s.store.PersistSubmission(ctx, sub)
	return sub.Score, nil
}

// ResultsResult is the ranked leaderboard for a session.
type ResultsResult struct {
	ID             string
	Category       string
	TotalQuestions int
	Rows           []domain.Submission
}

// Results returns the leaderboard ordered by score desc, earliest first on ties.
func (s *SessionLifecycle) Results(ctx context.Context, id string) (ResultsResult, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return ResultsResult{}, err
	}
	s.store.HydrateLedger(ctx, st)

	sess := st.Session()
	return ResultsResult{
		ID:             sess.ID,
		Category:       sess.Category,
		TotalQuestions: len(sess.Questions),
		Rows:           Rank(st.Submissions()),
	}, nil
}

// Answers exposes the full question set including correct indexes; this is
// the only read path that returns them.
func (s *SessionLifecycle) Answers(ctx context.Context, id string) ([]domain.Question, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := st.Session()
	out := make([]domain.Question, len(sess.Questions))
	copy(out, sess.Questions)
	return out, nil
}

// newSessionID mints a short base36 token, retrying on collision against
// both storage tiers, with a UUID-derived fallback so creation cannot fail.
func (s *SessionLifecycle) newSessionID(ctx context.Context) string {
	for attempt := 0; attempt < sessionIDAttempts; attempt++ {
		id := s.randomID()
		if !s.store.Exists(ctx, id) {
			return id
		}
		s.log.Warn("session id collision, retrying", "id", id)
	}
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

func (s *SessionLifecycle) randomID() string {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	b := make([]byte, sessionIDLength)
	for i := range b {
		b[i] = sessionIDAlphabet[s.rnd.Intn(len(sessionIDAlphabet))]
	}
	return string(b)
}
