package region

import (
	"strings"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// GlobalKey marks pool entries that apply to any country.
const GlobalKey = "*"

// Categories maps display category names to the trivia feed's category ids.
// An empty id means "any category".
type Categories struct{}

var categoryIDs = map[string]string{
	"General": "",
	"Movies":  "11",
	"Science": "17",
	"Sports":  "21",
	"History": "23",
}

func (Categories) CategoryID(name string) string {
	if id, ok := categoryIDs[name]; ok {
		return id
	}
	return ""
}

// Pool holds canned regional questions keyed by category then country, with
// tiered lookup: exact country, then linguistic/regional neighbors, then the
// global entry.
type Pool struct {
	entries   map[string]map[string]domain.Question
	neighbors map[string][]string
}

// NewDefaultPool returns the built-in pool.
func NewDefaultPool() *Pool {
	return &Pool{entries: defaultEntries, neighbors: defaultNeighbors}
}

// NewPool builds a pool from explicit tables, for tests.
func NewPool(entries map[string]map[string]domain.Question, neighbors map[string][]string) *Pool {
	return &Pool{entries: entries, neighbors: neighbors}
}

func (p *Pool) Lookup(category, country string) (domain.Question, bool) {
	byCountry, ok := p.entries[category]
	if !ok {
		return domain.Question{}, false
	}
	country = strings.ToUpper(strings.TrimSpace(country))

	if country != "" {
		if q, ok := byCountry[country]; ok {
			return q, true
		}
		for _, n := range p.neighbors[country] {
			if q, ok := byCountry[n]; ok {
				return q, true
			}
		}
	}
	q, ok := byCountry[GlobalKey]
	return q, ok
}

var defaultNeighbors = map[string][]string{
	"IE": {"GB"},
	"GB": {"IE"},
	"US": {"CA"},
	"CA": {"US"},
	"AU": {"NZ"},
	"NZ": {"AU"},
	"AT": {"DE"},
	"CH": {"DE"},
	"DE": {"AT", "CH"},
}

var defaultEntries = map[string]map[string]domain.Question{
	"General": {
		"IE": {
			Text:         "Which river flows through Dublin?",
			Options:      []string{"The Shannon", "The Liffey", "The Boyne", "The Lee"},
			CorrectIndex: 1,
		},
		"GB": {
			Text:         "Which river flows through London?",
			Options:      []string{"The Severn", "The Mersey", "The Thames", "The Tyne"},
			CorrectIndex: 2,
		},
		"US": {
			Text:         "How many states make up the United States?",
			Options:      []string{"48", "50", "51", "52"},
			CorrectIndex: 1,
		},
		GlobalKey: {
			Text:         "How many continents are there on Earth?",
			Options:      []string{"5", "6", "7", "8"},
			CorrectIndex: 2,
		},
	},
	"Sports": {
		"IE": {
			Text:         "In which sport is the Sam Maguire Cup awarded?",
			Options:      []string{"Hurling", "Gaelic football", "Rugby union", "Camogie"},
			CorrectIndex: 1,
		},
		GlobalKey: {
			Text:         "How often are the summer Olympic Games held?",
			Options:      []string{"Every 2 years", "Every 3 years", "Every 4 years", "Every 5 years"},
			CorrectIndex: 2,
		},
	},
	"History": {
		"IE": {
			Text:         "In what year was the Easter Rising?",
			Options:      []string{"1912", "1916", "1921", "1923"},
			CorrectIndex: 1,
		},
		GlobalKey: {
			Text:         "In what year did the Second World War end?",
			Options:      []string{"1943", "1944", "1945", "1946"},
			CorrectIndex: 2,
		},
	},
}
