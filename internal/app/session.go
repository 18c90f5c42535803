package app

import (
	"sync"
	"time"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// SessionState is the in-process runtime record for one session: the
// immutable session document plus the mutable participant set and submission
// ledger. The admit-then-append sequence runs as one critical section so two
// concurrent submissions can never both claim the last capacity slot or both
// pass the duplicate check.
type SessionState struct {
	session domain.Session

	mu           sync.RWMutex
	participants map[string]struct{}
	ledger       []domain.Submission
	ledgerIndex  map[string]struct{}
	hydrated     bool
}

// NewSessionState wraps a freshly created session. The ledger starts empty
// and hydrated, since nothing older can exist.
func NewSessionState(sess domain.Session) *SessionState {
	st := emptyState(sess)
	st.hydrated = true
	return st
}

// RehydratedSessionState wraps a session recovered from durable storage. The
// ledger starts as an empty placeholder and is filled lazily on first use.
func RehydratedSessionState(sess domain.Session) *SessionState {
	return emptyState(sess)
}

func emptyState(sess domain.Session) *SessionState {
	return &SessionState{
		session:      sess,
		participants: make(map[string]struct{}),
		ledgerIndex:  make(map[string]struct{}),
	}
}

// Session returns the immutable session document.
func (st *SessionState) Session() domain.Session {
	return st.session
}

// Submissions returns a copy of the ledger.
func (st *SessionState) Submissions() []domain.Submission {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]domain.Submission, len(st.ledger))
	copy(out, st.ledger)
	return out
}

// ParticipantCount reports how many distinct fingerprints have been admitted.
func (st *SessionState) ParticipantCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.participants)
}

// NeedsHydration reports whether the ledger placeholder is still unfilled.
func (st *SessionState) NeedsHydration() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return !st.hydrated
}

// Hydrate installs the durable submission history exactly once. Later calls
// are no-ops, so a racing hydration cannot clobber live submissions.
func (st *SessionState) Hydrate(subs []domain.Submission) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.hydrated {
		return
	}
	for _, sub := range subs {
		if _, dup := st.ledgerIndex[sub.Fingerprint]; dup {
			continue
		}
		st.ledger = append(st.ledger, sub)
		st.ledgerIndex[sub.Fingerprint] = struct{}{}
		st.participants[sub.Fingerprint] = struct{}{}
	}
	st.hydrated = true
}

// Submit runs the capacity gate, the duplicate gate, scoring, and the ledger
// append atomically. A rejected request never mutates the ledger.
func (st *SessionState) Submit(fingerprint, displayName string, maxParticipants int, score func([]domain.Question) int, now time.Time) (domain.Submission, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	_, admitted := st.participants[fingerprint]
	if !admitted && len(st.participants) >= maxParticipants {
		return domain.Submission{}, domain.ErrAtCapacity
	}
	if _, dup := st.ledgerIndex[fingerprint]; dup {
		return domain.Submission{}, domain.ErrDuplicateSubmission
	}
	st.participants[fingerprint] = struct{}{}

	sub := domain.Submission{
		SessionID:   st.session.ID,
		Fingerprint: fingerprint,
		DisplayName: displayName,
		Score:       score(st.session.Questions),
		SubmittedAt: now,
	}
	st.ledger = append(st.ledger, sub)
	st.ledgerIndex[fingerprint] = struct{}{}
	return sub, nil
}
