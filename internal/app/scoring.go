package app

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// Score counts picks that match the correct index of the question at the
// same position. Missing, out-of-range, or non-integer picks simply do not
// count; scoring never fails.
func Score(questions []domain.Question, picks []any) int {
	score := 0
	for i, q := range questions {
		if i >= len(picks) {
			break
		}
		idx, ok := pickIndex(picks[i])
		if ok && idx == q.CorrectIndex {
			score++
		}
	}
	return score
}

// pickIndex coerces a decoded JSON value into an integral option index.
func pickIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Rank orders submissions for the leaderboard: score descending, ties broken
// by earliest submission time. The input is not mutated.
func Rank(subs []domain.Submission) []domain.Submission {
	ranked := make([]domain.Submission, len(subs))
	copy(ranked, subs)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SubmittedAt.Before(ranked[j].SubmittedAt)
	})
	return ranked
}
