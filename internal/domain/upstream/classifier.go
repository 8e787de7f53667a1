package upstream

import (
	"bytes"
	"strings"
)

// BodyPrefixLen is how many leading body bytes classifiers inspect.
// The access-control layer's login page starts with an HTML document marker
// within this window.
const BodyPrefixLen = 100

// Verdict is the result of classifying a business response.
type Verdict int

const (
	// VerdictValid means the session was honored; relay the response as-is.
	VerdictValid Verdict = iota
	// VerdictSessionInvalid means the access-control layer no longer honors
	// the session: re-authenticate and retry once.
	VerdictSessionInvalid
)

// String returns the verdict name for logs.
func (v Verdict) String() string {
	if v == VerdictSessionInvalid {
		return "session_invalid"
	}
	return "valid"
}

// Classifier decides, from unstructured response signals, whether a business
// response proves the session is still valid. Implementations must be pure:
// no I/O, no state mutation, safe for concurrent use.
type Classifier interface {
	// Classify inspects the final status, Content-Type, and the first
	// BodyPrefixLen bytes of the body.
	Classify(status int, contentType string, bodyPrefix []byte) Verdict

	// BootstrapAccepted reports whether a bootstrap probe response proves the
	// session cookie was issued and accepted.
	BootstrapAccepted(status int, contentType string, bodyPrefix []byte) bool
}

// DefaultInvalidStatuses are the statuses the access-control layer emits when
// a session is no longer honored. 405 is included because the layer answers
// business POSTs routed into the login flow with Method Not Allowed.
var DefaultInvalidStatuses = []int{401, 403, 405, 301, 302}

// DefaultBootstrapStatuses are the probe statuses that prove cookie issuance.
// 405 means the upstream rejected the probe payload's semantics but the
// session itself was accepted; this is an assumption about the specific
// upstream and can be revisited here without touching the retry logic.
var DefaultBootstrapStatuses = []int{200, 405}

// HeuristicClassifier implements the observed behavior of the F5 APM layer:
// auth-related status codes, redirects, and silently substituted HTML login
// pages all mean the session is gone.
type HeuristicClassifier struct {
	invalid map[int]struct{}
	allow   map[int]struct{}
}

// NewHeuristicClassifier builds a classifier from explicit status sets.
// Empty slices select the defaults.
func NewHeuristicClassifier(invalidStatuses, bootstrapStatuses []int) *HeuristicClassifier {
	if len(invalidStatuses) == 0 {
		invalidStatuses = DefaultInvalidStatuses
	}
	if len(bootstrapStatuses) == 0 {
		bootstrapStatuses = DefaultBootstrapStatuses
	}
	c := &HeuristicClassifier{
		invalid: make(map[int]struct{}, len(invalidStatuses)),
		allow:   make(map[int]struct{}, len(bootstrapStatuses)),
	}
	for _, s := range invalidStatuses {
		c.invalid[s] = struct{}{}
	}
	for _, s := range bootstrapStatuses {
		c.allow[s] = struct{}{}
	}
	return c
}

// Classify flags auth/redirect statuses and HTML-looking bodies as
// session-invalid. Anything else is relayed verbatim, including upstream
// business errors.
func (c *HeuristicClassifier) Classify(status int, contentType string, bodyPrefix []byte) Verdict {
	if _, ok := c.invalid[status]; ok {
		return VerdictSessionInvalid
	}
	if LooksLikeHTML(contentType, bodyPrefix) {
		return VerdictSessionInvalid
	}
	return VerdictValid
}

// BootstrapAccepted requires an allow-listed status and a non-HTML body.
func (c *HeuristicClassifier) BootstrapAccepted(status int, contentType string, bodyPrefix []byte) bool {
	if _, ok := c.allow[status]; !ok {
		return false
	}
	return !LooksLikeHTML(contentType, bodyPrefix)
}

// LooksLikeHTML reports whether a response is recognizably an HTML document:
// an HTML content type, or an HTML document marker within the leading bytes.
// The scan is case-insensitive and limited to BodyPrefixLen bytes.
func LooksLikeHTML(contentType string, bodyPrefix []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	if len(bodyPrefix) > BodyPrefixLen {
		bodyPrefix = bodyPrefix[:BodyPrefixLen]
	}
	lower := bytes.ToLower(bodyPrefix)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype html"))
}

// Compile-time check that HeuristicClassifier implements Classifier.
var _ Classifier = (*HeuristicClassifier)(nil)
