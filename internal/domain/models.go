package domain

import "time"

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question models a single MCQ item. CorrectIndex is always in [0, OptionCount).
type Question struct {
	Text         string   `json:"q"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// PublicQuestion is the answer-free projection served to players.
type PublicQuestion struct {
	Text    string   `json:"q"`
	Options []string `json:"options"`
}

// Public strips the correct index from a question.
func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{Text: q.Text, Options: opts}
}

// Session is a broadcast quiz round: immutable after creation.
type Session struct {
	ID        string     `json:"id"`
	Category  string     `json:"category"`
	Topic     string     `json:"topic,omitempty"`
	Country   string     `json:"country,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosesAt  time.Time  `json:"closesAt"`
	Questions []Question `json:"questions"`
}

// Open reports whether the session is still accepting play at the given instant.
func (s Session) Open(now time.Time) bool {
	return !now.After(s.ClosesAt)
}

// Submission is one scored entry in a session's ledger. Fingerprint is the
// derived participant identity and is never serialized to clients.
type Submission struct {
	SessionID   string    `json:"-"`
	Fingerprint string    `json:"-"`
	DisplayName string    `json:"name"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Provider identifies which acquisition strategy produced a session's questions.
type Provider string

const (
	ProviderAI     Provider = "ai"
	ProviderTrivia Provider = "trivia"
)
