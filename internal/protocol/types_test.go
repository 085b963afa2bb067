package protocol

import "testing"

func TestReactionsWith(t *testing.T) {
	var r Reactions
	r = r.With("", "👍", false)
	r = r.With("", "👍", true)
	r = r.With("", "❤", false)
	if got := r.String(); got != "👍2 ❤" {
		t.Errorf("String() = %q, want %q", got, "👍2 ❤")
	}
	if r.Own != "👍" {
		t.Errorf("Own = %q, want 👍", r.Own)
	}

	// Switching own reaction moves one count.
	r2 := r.With("👍", "❤", true)
	if got := r2.String(); got != "👍 ❤2" {
		t.Errorf("after switch String() = %q", got)
	}
	// The original value is untouched.
	if got := r.String(); got != "👍2 ❤" {
		t.Errorf("original mutated: %q", got)
	}

	// Clearing removes entries that drop to zero.
	r3 := Reactions{}.With("", "😂", true).With("😂", "", true)
	if !r3.Empty() || r3.Own != "" {
		t.Errorf("cleared reactions = %+v", r3)
	}
}

func TestChatMessageBefore(t *testing.T) {
	a := ChatMessage{ID: "a", Timestamp: 10}
	b := ChatMessage{ID: "b", Timestamp: 10}
	c := ChatMessage{ID: "0", Timestamp: 11}
	if !a.Before(b) || b.Before(a) {
		t.Error("equal timestamps should order by id")
	}
	if !b.Before(c) {
		t.Error("older timestamp should come first")
	}
}

func TestContactDisplayName(t *testing.T) {
	tests := []struct {
		c    ContactInfo
		want string
	}{
		{ContactInfo{ID: "1", Name: "Ann", Alias: "Mom"}, "Mom"},
		{ContactInfo{ID: "1", Name: "Ann", Phone: "555"}, "Ann"},
		{ContactInfo{ID: "1", Phone: "555"}, "555"},
		{ContactInfo{ID: "1"}, "1"},
	}
	for _, tt := range tests {
		if got := tt.c.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestFileStatusFailed(t *testing.T) {
	if !FileDownloadFailed.Failed() || FileDownloaded.Failed() {
		t.Error("Failed() misclassifies")
	}
}
