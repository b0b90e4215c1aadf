package extract

import "strings"

// Kind partitions extraction failures by how the caller should react.
type Kind int

const (
	// KindFailed is the catch-all for unclassified extractor errors.
	KindFailed Kind = iota
	// KindNotFound means the media does not exist or was deleted.
	KindNotFound
	// KindForbidden means the upstream refused access. This is the signal
	// that feeds egress failover.
	KindForbidden
	// KindAuthRequired means the content is gated behind a login.
	KindAuthRequired
	// KindUnsupported means the extractor has no handler for the URL.
	KindUnsupported
	// KindTimeout means the extraction deadline elapsed.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindAuthRequired:
		return "auth_required"
	case KindUnsupported:
		return "unsupported"
	case KindTimeout:
		return "timeout"
	default:
		return "extraction_failed"
	}
}

// Error is a classified extraction failure. Detail carries the extractor's
// own message for logs; it is never sent to clients verbatim.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return "extract: " + e.Kind.String() + ": " + e.Detail
}

// Classifier maps extractor error text onto a Kind by substring matching.
// ExtraBlockedPatterns extends the forbidden set at runtime, so new upstream
// block phrasings can be handled without a rebuild.
type Classifier struct {
	ExtraBlockedPatterns []string
}

var (
	notFoundPatterns = []string{"not found", "unable to download"}
	blockedPatterns  = []string{"403", "forbidden", "blocked", "rate limit"}
	authPatterns     = []string{"login", "authentication"}
)

// Classify inspects extractor error output and returns a typed Error.
// Match order matters: not-found phrasings win over the blocked set because
// extractor messages for deleted media often embed status codes too.
func (c *Classifier) Classify(detail string) *Error {
	lower := strings.ToLower(detail)
	switch {
	case containsAny(lower, notFoundPatterns):
		return &Error{Kind: KindNotFound, Detail: detail}
	case containsAny(lower, blockedPatterns) || containsAny(lower, c.lowerExtra()):
		return &Error{Kind: KindForbidden, Detail: detail}
	case containsAny(lower, authPatterns):
		return &Error{Kind: KindAuthRequired, Detail: detail}
	case strings.Contains(lower, "unsupported url"):
		return &Error{Kind: KindUnsupported, Detail: detail}
	default:
		return &Error{Kind: KindFailed, Detail: detail}
	}
}

func (c *Classifier) lowerExtra() []string {
	if len(c.ExtraBlockedPatterns) == 0 {
		return nil
	}
	out := make([]string, len(c.ExtraBlockedPatterns))
	for i, p := range c.ExtraBlockedPatterns {
		out[i] = strings.ToLower(p)
	}
	return out
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
