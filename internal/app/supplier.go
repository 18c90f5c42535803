package app

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

const (
	minQuestions = 3
	maxQuestions = 10
	// aiOverFetch pads AI requests so duplicates can be dropped without
	// leaving the quiz short.
	aiOverFetch = 5
)

// TriviaItem is one raw question from the external trivia feed. Text fields
// arrive HTML-entity decoded by the provider client.
type TriviaItem struct {
	Question         string
	IncorrectAnswers []string
	CorrectAnswer    string
}

// TriviaProvider fetches multiple-choice questions from the external feed.
// An empty categoryID means "any category".
type TriviaProvider interface {
	Fetch(ctx context.Context, categoryID string, amount int) ([]TriviaItem, error)
}

// AICandidate is one untrusted question candidate from the AI provider.
// CorrectIndex is a pointer because the provider routinely omits it.
type AICandidate struct {
	Text         string
	Options      []string
	CorrectIndex *int
}

// AIProvider generates topical questions. Output must be treated as
// partially malformed.
type AIProvider interface {
	Generate(ctx context.Context, topic, country string, amount int, difficulty string) ([]AICandidate, error)
}

// ContentFilter screens host-supplied topics. It never fails: rejected
// topics come back replaced with a safe default.
type ContentFilter interface {
	Sanitize(raw string) (safe string, allowed bool)
}

// RegionalPool serves canned questions for a category/country pair, with
// tiered fallback (exact country, then neighbors, then global).
type RegionalPool interface {
	Lookup(category, country string) (domain.Question, bool)
}

// CategoryMapper resolves a display category name to the trivia feed's id.
type CategoryMapper interface {
	CategoryID(name string) string
}

// AcquireRequest describes one question-acquisition run.
type AcquireRequest struct {
	Category   string
	Topic      string
	Country    string
	Amount     int
	Difficulty string
}

// QuestionSupplier orchestrates the acquisition strategies: the AI path when
// a usable topic is supplied, otherwise the trivia feed blended with the
// regional pool. First strategy to produce questions wins.
type QuestionSupplier struct {
	trivia     TriviaProvider
	ai         AIProvider
	filter     ContentFilter
	regional   RegionalPool
	categories CategoryMapper
	novelty    NoveltyStore
	log        *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionSupplier(trivia TriviaProvider, ai AIProvider, filter ContentFilter, regional RegionalPool, categories CategoryMapper, novelty NoveltyStore, rnd *rand.Rand, log *slog.Logger) *QuestionSupplier {
	return &QuestionSupplier{
		trivia:     trivia,
		ai:         ai,
		filter:     filter,
		regional:   regional,
		categories: categories,
		novelty:    novelty,
		rnd:        rnd,
		log:        log,
	}
}

// Acquire produces exactly the clamped amount of validated questions, or
// domain.ErrUpstreamFailure when every strategy fails.
func (s *QuestionSupplier) Acquire(ctx context.Context, req AcquireRequest) ([]domain.Question, domain.Provider, error) {
	req.Amount = clampAmount(req.Amount)

	type strategy struct {
		provider domain.Provider
		run      func(context.Context, AcquireRequest) ([]domain.Question, error)
	}
	strategies := []strategy{
		{domain.ProviderAI, s.acquireAI},
		{domain.ProviderTrivia, s.acquireTrivia},
	}

	var lastErr error
	for _, st := range strategies {
		questions, err := st.run(ctx, req)
		if err != nil {
			lastErr = err
			s.log.Debug("acquisition strategy failed", "provider", string(st.provider), "err", err)
			continue
		}
		return questions, st.provider, nil
	}
	return nil, "", fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, lastErr)
}

var errStrategySkipped = fmt.Errorf("strategy not applicable")

// acquireAI asks the AI provider for over-fetched candidates, repairs their
// shape, and filters them through the novelty window for the topic/country.
func (s *QuestionSupplier) acquireAI(ctx context.Context, req AcquireRequest) ([]domain.Question, error) {
	topic := strings.TrimSpace(req.Topic)
	if s.ai == nil || len(topic) < 3 {
		return nil, errStrategySkipped
	}

	safeTopic, allowed := s.filter.Sanitize(topic)
	if !allowed {
		s.log.Info("topic rejected by content filter, using default", "topic", topic)
	}

	candidates, err := s.ai.Generate(ctx, safeTopic, req.Country, req.Amount+aiOverFetch, req.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("ai generate: %w", err)
	}

	type scoredCandidate struct {
		question   domain.Question
		normalized string
	}
	repaired := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		q, ok := repairCandidate(c)
		if !ok {
			continue
		}
		repaired = append(repaired, scoredCandidate{q, NormalizeQuestion(q.Text)})
	}

	picked := make([]domain.Question, 0, req.Amount)
	pickedNorms := make(map[string]struct{})
	var batchDupes []scoredCandidate

	for _, c := range repaired {
		if len(picked) == req.Amount {
			break
		}
		if s.novelty.Seen(ctx, safeTopic, req.Country, c.normalized) {
			continue
		}
		if _, dup := pickedNorms[c.normalized]; dup {
			batchDupes = append(batchDupes, c)
			continue
		}
		picked = append(picked, c.question)
		pickedNorms[c.normalized] = struct{}{}
	}

	// Top-up pass: relax only the intra-batch constraint; the recent-history
	// window still applies.
	for _, c := range batchDupes {
		if len(picked) == req.Amount {
			break
		}
		picked = append(picked, c.question)
	}

	if len(picked) == 0 {
		return nil, fmt.Errorf("ai path yielded no usable questions for topic %q", safeTopic)
	}
	if len(picked) < req.Amount {
		s.log.Warn("ai path short of requested amount", "want", req.Amount, "got", len(picked))
	}
	if len(picked) > req.Amount {
		picked = picked[:req.Amount]
	}

	norms := make([]string, len(picked))
	for i, q := range picked {
		norms[i] = NormalizeQuestion(q.Text)
	}
	s.novelty.Remember(ctx, safeTopic, req.Country, norms)

	return picked, nil
}

// acquireTrivia pulls from the external feed, shuffles each question's
// options, and prepends a canned regional question when one exists.
func (s *QuestionSupplier) acquireTrivia(ctx context.Context, req AcquireRequest) ([]domain.Question, error) {
	items, err := s.trivia.Fetch(ctx, s.categories.CategoryID(req.Category), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("trivia fetch: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("trivia feed returned no questions")
	}

	questions := make([]domain.Question, 0, req.Amount+1)
	for _, item := range items {
		questions = append(questions, s.shuffleItem(item))
	}

	if regional, ok := s.regional.Lookup(req.Category, req.Country); ok {
		questions = append([]domain.Question{regional}, questions...)
	}
	if len(questions) > req.Amount {
		questions = questions[:req.Amount]
	}
	return questions, nil
}

// shuffleItem builds a 4-option question with the correct answer placed at a
// uniformly random post-shuffle index. Extra incorrect answers are dropped
// before the shuffle so the tracked index stays in range when repairShape
// trims the list.
func (s *QuestionSupplier) shuffleItem(item TriviaItem) domain.Question {
	incorrect := item.IncorrectAnswers
	if len(incorrect) > domain.OptionCount-1 {
		incorrect = incorrect[:domain.OptionCount-1]
	}
	options := make([]string, 0, domain.OptionCount)
	options = append(options, incorrect...)
	options = append(options, item.CorrectAnswer)
	correct := len(options) - 1

	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	for i := len(options) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
	}

	q := domain.Question{Text: item.Question, Options: options, CorrectIndex: correct}
	return repairShape(q)
}

// repairCandidate validates an untrusted AI candidate, fixing what it can.
// Only an empty question text is unsalvageable.
func repairCandidate(c AICandidate) (domain.Question, bool) {
	text := strings.TrimSpace(html.UnescapeString(c.Text))
	if text == "" {
		return domain.Question{}, false
	}
	q := domain.Question{Text: text, Options: c.Options}
	if c.CorrectIndex != nil {
		q.CorrectIndex = *c.CorrectIndex
	}
	return repairShape(q), true
}

// repairShape forces the question into the canonical 4-option shape with an
// in-range correct index, defaulting to 0 rather than rejecting.
func repairShape(q domain.Question) domain.Question {
	options := make([]string, 0, domain.OptionCount)
	for _, o := range q.Options {
		if len(options) == domain.OptionCount {
			break
		}
		options = append(options, strings.TrimSpace(o))
	}
	for len(options) < domain.OptionCount {
		options = append(options, "None of the above")
	}
	q.Options = options
	if q.CorrectIndex < 0 || q.CorrectIndex >= domain.OptionCount {
		q.CorrectIndex = 0
	}
	return q
}

func clampAmount(amount int) int {
	if amount < minQuestions {
		return minQuestions
	}
	if amount > maxQuestions {
		return maxQuestions
	}
	return amount
}
