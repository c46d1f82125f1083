// Package redact implements the pure redaction functions applied to
// network headers, metadata maps, and URL query parameters before they
// are captured in a LogEntry or persisted. Redaction never touches the
// in-memory LogEntry that callers still hold; it always returns a copy.
package redact

import (
	"net/url"
	"strings"

	"github.com/porby-sdk/porby/pkg/model"
)

// Redactor holds the configured set of sensitive names/keys/params and
// the placeholder substituted for any match. Matching is case-
// insensitive for header names, metadata keys, and query parameter
// names.
type Redactor struct {
	headerNames  set
	metadataKeys set
	queryParams  set
	placeholder  string
}

type set map[string]struct{}

func newSet(values []string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[strings.ToLower(v)] = struct{}{}
	}
	return s
}

func (s set) has(key string) bool {
	_, ok := s[strings.ToLower(key)]
	return ok
}

// New constructs a Redactor. An empty placeholder defaults to
// "<redacted>" so that redaction is always visibly distinguishable
// from a genuinely empty value.
func New(headerNames, metadataKeys, queryParams []string, placeholder string) *Redactor {
	if placeholder == "" {
		placeholder = "<redacted>"
	}
	return &Redactor{
		headerNames:  newSet(headerNames),
		metadataKeys: newSet(metadataKeys),
		queryParams:  newSet(queryParams),
		placeholder:  placeholder,
	}
}

// RedactHeaders returns a copy of h where any key matching a
// configured redacted name (case-insensitive) is replaced by the
// placeholder.
func (r *Redactor) RedactHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if r.headerNames.has(k) {
			out[k] = r.placeholder
		} else {
			out[k] = v
		}
	}
	return out
}

// RedactMetadata returns a copy of m where any key matching a
// configured redacted metadata key is replaced by a string-typed
// placeholder value.
func (r *Redactor) RedactMetadata(m model.Metadata) model.Metadata {
	if m == nil {
		return nil
	}
	out := make(model.Metadata, len(m))
	for k, v := range m {
		if r.metadataKeys.has(k) {
			out[k] = model.StringValue(r.placeholder)
		} else {
			out[k] = v
		}
	}
	return out
}

// RedactURL parses s, rewrites the value of any query parameter whose
// lowercased name is configured for redaction, and re-serializes the
// URL. An unparseable URL is returned unchanged.
func (r *Redactor) RedactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}

	q := u.Query()
	changed := false
	for name := range q {
		if r.queryParams.has(name) {
			q.Set(name, r.placeholder)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
