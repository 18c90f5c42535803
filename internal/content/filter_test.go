package content

import "testing"

func TestSanitizePassesCleanTopics(t *testing.T) {
	f := NewDefaultFilter()
	topic, allowed := f.Sanitize("  Irish mythology ")
	if !allowed {
		t.Fatalf("clean topic rejected")
	}
	if topic != "Irish mythology" {
		t.Fatalf("expected trimmed topic, got %q", topic)
	}
}

func TestSanitizeSubstitutesDefault(t *testing.T) {
	f := NewFilter([]string{"forbidden"})

	topic, allowed := f.Sanitize("Totally FORBIDDEN things")
	if allowed {
		t.Fatalf("blocked topic passed")
	}
	if topic != DefaultTopic {
		t.Fatalf("expected default topic, got %q", topic)
	}

	topic, allowed = f.Sanitize("   ")
	if allowed || topic != DefaultTopic {
		t.Fatalf("blank topic must fall back to the default")
	}
}
