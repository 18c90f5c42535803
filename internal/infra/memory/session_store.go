package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

const durableWriteTimeout = 5 * time.Second

// SessionStore is the in-process authoritative session cache with
// read-through fallback to an optional durable backend and fire-and-forget
// write-back. A nil backend runs the store in memory-only mode.
type SessionStore struct {
	durable app.DurableBackend
	log     *slog.Logger
	sf      singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*app.SessionState
}

func NewSessionStore(durable app.DurableBackend, log *slog.Logger) *SessionStore {
	return &SessionStore{
		durable:  durable,
		log:      log,
		sessions: make(map[string]*app.SessionState),
	}
}

// Create registers the session in the cache and kicks off a best-effort
// durable write. The cache write is authoritative for this process.
func (s *SessionStore) Create(_ context.Context, sess domain.Session) error {
	st := app.NewSessionState(sess)

	s.mu.Lock()
	s.sessions[sess.ID] = st
	s.mu.Unlock()

	if s.durable != nil {
		go s.writeBack("save session", sess.ID, func(ctx context.Context) error {
			return s.durable.SaveSession(ctx, sess)
		})
	}
	return nil
}

// Get serves from the cache, falling back to the durable backend on miss.
// A durable hit rehydrates the cache with the session and an empty ledger
// placeholder before returning.
func (s *SessionStore) Get(ctx context.Context, id string) (*app.SessionState, error) {
	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return st, nil
	}

	if s.durable == nil {
		return nil, domain.ErrSessionNotFound
	}

	result, err, _ := s.sf.Do(id, func() (interface{}, error) {
		// Re-check: another goroutine may have rehydrated while we queued.
		s.mu.RLock()
		st, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return st, nil
		}

		sess, found, err := s.durable.LoadSession(ctx, id)
		if err != nil {
			s.log.Warn("durable session load failed", "session", id, "err", err)
			return nil, domain.ErrSessionNotFound
		}
		if !found {
			return nil, domain.ErrSessionNotFound
		}

		st = app.RehydratedSessionState(sess)
		s.mu.Lock()
		s.sessions[id] = st
		s.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*app.SessionState), nil
}

// Exists reports whether the id is taken in the cache or the durable backend.
func (s *SessionStore) Exists(ctx context.Context, id string) bool {
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return true
	}
	if s.durable == nil {
		return false
	}
	_, found, err := s.durable.LoadSession(ctx, id)
	if err != nil {
		// Collision checking degrades to cache-only when the backend is down.
		return false
	}
	return found
}

// HydrateLedger lazily fills a rehydrated session's submission history.
// Backend failure leaves the session in memory-only mode rather than
// blocking submissions.
func (s *SessionStore) HydrateLedger(ctx context.Context, st *app.SessionState) {
	if s.durable == nil || !st.NeedsHydration() {
		return
	}
	subs, err := s.durable.LoadSubmissions(ctx, st.Session().ID)
	if err != nil {
		s.log.Warn("durable submissions load failed", "session", st.Session().ID, "err", err)
		st.Hydrate(nil)
		return
	}
	st.Hydrate(subs)
}

// PersistSubmission propagates a ledger append to the durable backend,
// fire-and-forget.
func (s *SessionStore) PersistSubmission(_ context.Context, sub domain.Submission) {
	if s.durable == nil {
		return
	}
	go s.writeBack("save submission", sub.SessionID, func(ctx context.Context) error {
		return s.durable.SaveSubmission(ctx, sub.SessionID, sub)
	})
}

// writeBack runs a durable write detached from the request with its own
// timeout; failures are logged and swallowed.
func (s *SessionStore) writeBack(op, sessionID string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log.Warn("durable write failed", "op", op, "session", sessionID, "err", err)
	}
}
