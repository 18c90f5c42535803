package content

import "strings"

// DefaultTopic replaces topics the filter rejects.
const DefaultTopic = "general knowledge"

// Filter screens host-supplied quiz topics against a blocklist. Sanitize
// never fails; a rejected topic is swapped for the default.
type Filter struct {
	blocked []string
}

// NewFilter builds a filter over the given blocklist. Matching is
// case-insensitive substring containment on word stems.
func NewFilter(blocked []string) *Filter {
	normalized := make([]string, 0, len(blocked))
	for _, w := range blocked {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			normalized = append(normalized, w)
		}
	}
	return &Filter{blocked: normalized}
}

// NewDefaultFilter uses the built-in blocklist.
func NewDefaultFilter() *Filter {
	return NewFilter(defaultBlocklist)
}

func (f *Filter) Sanitize(raw string) (string, bool) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return DefaultTopic, false
	}
	lowered := strings.ToLower(topic)
	for _, w := range f.blocked {
		if strings.Contains(lowered, w) {
			return DefaultTopic, false
		}
	}
	return topic, true
}
