package matcher

// NamedMatcher adapts any Matcher into a Named by pairing it with a display
// name, for use inside a Group (e.g. each stage or rule template matcher
// wrapped with its display string).
type NamedMatcher struct {
	Matcher
	name string
}

func WithName(name string, m Matcher) *NamedMatcher {
	return &NamedMatcher{Matcher: m, name: name}
}

func (n *NamedMatcher) Name() string { return n.name }
