package topic

import "testing"

func TestTopic_Segments(t *testing.T) {
	tests := []struct {
		topic Topic
		want  int
	}{
		{"", 0},
		{"load", 1},
		{"load.completed", 2},
		{"selection.changed.tree", 3},
	}

	for _, tt := range tests {
		if got := len(tt.topic.Segments()); got != tt.want {
			t.Errorf("Segments(%q) returned %d segments, want %d", tt.topic, got, tt.want)
		}
	}
}

func TestTopic_ParentChild(t *testing.T) {
	if got := Topic("load.completed").Parent(); got != "load" {
		t.Errorf("Parent() = %q, want %q", got, "load")
	}
	if got := Topic("load").Parent(); got != "" {
		t.Errorf("Parent() of single segment = %q, want empty", got)
	}
	if got := Topic("load").Child("failed"); got != "load.failed" {
		t.Errorf("Child() = %q, want %q", got, "load.failed")
	}
	if got := Topic("").Child("load"); got != "load" {
		t.Errorf("Child() on empty = %q, want %q", got, "load")
	}
}

func TestTopic_IsValid(t *testing.T) {
	tests := []struct {
		topic Topic
		want  bool
	}{
		{"load.completed", true},
		{"load.*", true},
		{"**", true},
		{"", false},
		{"load..completed", false},
		{"load.comp*", false},
	}

	for _, tt := range tests {
		if got := tt.topic.IsValid(); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern Topic
		topic   Topic
		want    bool
	}{
		{"exact", "load.completed", "load.completed", true},
		{"exact mismatch", "load.completed", "load.failed", false},
		{"single wildcard", "load.*", "load.completed", true},
		{"single wildcard depth mismatch", "load.*", "load.token.cancelled", false},
		{"single wildcard too shallow", "load.*", "load", false},
		{"multi wildcard all", "**", "selection.changed", true},
		{"multi wildcard prefix", "load.**", "load.token.cancelled", true},
		{"multi wildcard zero segments", "load.**", "load", true},
		{"mid wildcard", "load.*.cancelled", "load.token.cancelled", true},
		{"prefix is not a match", "load", "load.completed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}
