package app

import (
	"context"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// DurableBackend persists sessions and submissions outside the process.
// Every call is individually best-effort; a nil backend (memory-only mode)
// is a valid configuration.
type DurableBackend interface {
	SaveSession(ctx context.Context, sess domain.Session) error
	LoadSession(ctx context.Context, id string) (domain.Session, bool, error)
	SaveSubmission(ctx context.Context, sessionID string, sub domain.Submission) error
	LoadSubmissions(ctx context.Context, sessionID string) ([]domain.Submission, error)
}

// SessionRepository is the authoritative two-tier session store: an
// in-process cache backed by an optional durable backend. Reads fall through
// to the backend on cache miss; writes hit the cache synchronously and
// propagate to the backend fire-and-forget.
type SessionRepository interface {
	// Create registers a new session. The in-memory write is authoritative;
	// durable persistence is best-effort.
	Create(ctx context.Context, sess domain.Session) error
	// Get returns the runtime state for a session, rehydrating from the
	// durable backend on cache miss. Returns domain.ErrSessionNotFound when
	// the session exists in neither tier.
	Get(ctx context.Context, id string) (*SessionState, error)
	// Exists reports whether an id is taken in either tier. Used by the
	// collision-checked id generator.
	Exists(ctx context.Context, id string) bool
	// HydrateLedger fills a rehydrated session's submission placeholder from
	// durable storage, once. Best-effort: on backend failure the session
	// degrades to memory-only semantics.
	HydrateLedger(ctx context.Context, st *SessionState)
	// PersistSubmission propagates an already-appended submission to the
	// durable backend, fire-and-forget.
	PersistSubmission(ctx context.Context, sub domain.Submission)
}
