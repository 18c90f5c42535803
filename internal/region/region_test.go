package region

import (
	"testing"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

func TestLookupTiers(t *testing.T) {
	entries := map[string]map[string]domain.Question{
		"General": {
			"IE":      {Text: "irish", Options: []string{"a", "b", "c", "d"}},
			GlobalKey: {Text: "global", Options: []string{"a", "b", "c", "d"}},
		},
	}
	neighbors := map[string][]string{"GB": {"IE"}}
	pool := NewPool(entries, neighbors)

	q, ok := pool.Lookup("General", "IE")
	if !ok || q.Text != "irish" {
		t.Fatalf("expected exact country match, got %+v ok=%v", q, ok)
	}

	q, ok = pool.Lookup("General", "gb")
	if !ok || q.Text != "irish" {
		t.Fatalf("expected neighbor match for GB, got %+v ok=%v", q, ok)
	}

	q, ok = pool.Lookup("General", "JP")
	if !ok || q.Text != "global" {
		t.Fatalf("expected global fallback, got %+v ok=%v", q, ok)
	}

	if _, ok := pool.Lookup("Movies", "IE"); ok {
		t.Fatalf("expected no match for unknown category")
	}
}

func TestDefaultPoolQuestionsAreWellFormed(t *testing.T) {
	pool := NewDefaultPool()
	for category, byCountry := range defaultEntries {
		for country := range byCountry {
			q, ok := pool.Lookup(category, country)
			if country == GlobalKey {
				q, ok = pool.Lookup(category, "ZZ")
			}
			if !ok {
				t.Fatalf("lookup failed for %s/%s", category, country)
			}
			if len(q.Options) != domain.OptionCount {
				t.Fatalf("%s/%s: expected 4 options, got %d", category, country, len(q.Options))
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= domain.OptionCount {
				t.Fatalf("%s/%s: correct index out of range: %d", category, country, q.CorrectIndex)
			}
		}
	}
}

func TestCategoryIDs(t *testing.T) {
	c := Categories{}
	if got := c.CategoryID("History"); got != "23" {
		t.Fatalf("expected 23, got %q", got)
	}
	if got := c.CategoryID("General"); got != "" {
		t.Fatalf("General maps to any category, got %q", got)
	}
	if got := c.CategoryID("Unknown"); got != "" {
		t.Fatalf("unknown categories fall back to any, got %q", got)
	}
}
