package response

import (
	"net/textproto"
	"slices"
	"strings"
)

// Header is a case-insensitive view of a response header block.
// Get returns the first occurrence of a name; later duplicates are
// retained and reachable through Values.
type Header struct {
	m map[string][]string
}

// NewHeader returns an empty Header.
func NewHeader() Header {
	return Header{m: make(map[string][]string)}
}

// Add appends value under name.
func (h *Header) Add(name, value string) {
	if h.m == nil {
		h.m = make(map[string][]string)
	}

	key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
	h.m[key] = append(h.m[key], strings.TrimSpace(value))
}

// Get returns the first value for name, or "" when absent.
func (h Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the first value for name and whether it was present.
func (h Header) Lookup(name string) (string, bool) {
	vals := h.m[textproto.CanonicalMIMEHeaderKey(name)]
	if len(vals) == 0 {
		return "", false
	}

	return vals[0], true
}

// Values returns every value for name in arrival order.
func (h Header) Values(name string) []string {
	return slices.Clone(h.m[textproto.CanonicalMIMEHeaderKey(name)])
}

// Len returns the number of distinct names.
func (h Header) Len() int {
	return len(h.m)
}

// Keys returns the canonical names in sorted order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h.m))
	for k := range h.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}

// parseHeaderLine splits line on its first colon. Names holding
// whitespace are rejected so banner text like "proxy at 10.0.0.1:8080"
// is not mistaken for a header.
func parseHeaderLine(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}

	return name, value, true
}
