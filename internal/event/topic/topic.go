package topic

import "strings"

// Topic is a hierarchical event type using dot notation.
// Examples: "load.completed", "selection.changed", "state.changed".
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more trailing segments.
	WildcardMulti = "**"

	// Separator divides topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Parent returns the topic with its last segment removed, or the empty
// topic if there is only one segment.
func (t Topic) Parent() Topic {
	idx := strings.LastIndex(string(t), Separator)
	if idx < 0 {
		return ""
	}
	return t[:idx]
}

// Child returns the topic with an extra segment appended.
func (t Topic) Child(segment string) Topic {
	if t == "" {
		return Topic(segment)
	}
	return t + Topic(Separator) + Topic(segment)
}

// IsPattern reports whether the topic contains wildcard segments.
func (t Topic) IsPattern() bool {
	return strings.Contains(string(t), WildcardSingle)
}

// IsValid reports whether the topic is well formed: non-empty, no empty
// segments, and wildcards only as whole segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		switch seg {
		case "":
			return false
		case WildcardSingle, WildcardMulti:
			continue
		default:
			if strings.Contains(seg, WildcardSingle) {
				return false
			}
		}
	}
	return true
}
