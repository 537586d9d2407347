package topic

// Match reports whether a concrete topic matches a pattern.
//
// Pattern segments match literally except for wildcards: "*" matches any
// single segment, and a trailing "**" matches zero or more remaining
// segments. Patterns without wildcards match only the identical topic.
//
//	Match("load.*", "load.completed")        // true
//	Match("load.*", "load.token.cancelled")  // false
//	Match("**", "anything.at.all")           // true
func Match(pattern, t Topic) bool {
	if pattern == t {
		return true
	}

	ps := pattern.Segments()
	ts := t.Segments()

	for i, seg := range ps {
		if seg == WildcardMulti {
			// Only meaningful as the final segment.
			return i == len(ps)-1
		}
		if i >= len(ts) {
			return false
		}
		if seg != WildcardSingle && seg != ts[i] {
			return false
		}
	}

	return len(ps) == len(ts)
}
