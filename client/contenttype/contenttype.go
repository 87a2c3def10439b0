// Package contenttype maps file extensions to MIME types and guesses the
// type of a body from its first bytes when nothing else settles it.
package contenttype

import (
	"path"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// Unknown tells callers to save the body rather than interpret it.
	Unknown = "content/unknown"
	HTML    = "text/html"
)

var defaults = map[string]string{
	".html": HTML,
	".htm":  HTML,
	".txt":  "text/plain",
	".text": "text/plain",
	".c":    "text/plain",
	".h":    "text/plain",
	".go":   "text/plain",
	".java": "text/plain",
	".css":  "text/css",
	".csv":  "text/csv",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".xbm":  "image/x-xbitmap",
	".au":   "audio/basic",
	".snd":  "audio/basic",
	".wav":  "audio/x-wav",
	".ps":   "application/postscript",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
}

// Table maps lower-case extensions, including the leading dot, to MIME
// types. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	byExt map[string]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{byExt: make(map[string]string)}
}

// Default returns a new Table holding the common web types.
func Default() *Table {
	t := New()
	for ext, ct := range defaults {
		t.byExt[ext] = ct
	}

	return t
}

// Add maps ext to contentType. The leading dot is optional.
func (t *Table) Add(ext, contentType string) {
	ext = normalizeExt(ext)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.byExt[ext] = contentType
}

// ForExtension returns the type mapped to ext.
func (t *Table) ForExtension(ext string) (string, bool) {
	ext = normalizeExt(ext)

	t.mu.RLock()
	defer t.mu.RUnlock()

	ct, ok := t.byExt[ext]
	return ct, ok
}

// ForPath guesses from a URL path: a trailing "/" names a directory
// listing and is HTML, otherwise the extension decides.
func (t *Table) ForPath(p string) (string, bool) {
	if p == "" || strings.HasSuffix(p, "/") {
		return HTML, true
	}

	ext := path.Ext(p)
	if ext == "" {
		return "", false
	}

	return t.ForExtension(ext)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return ext
}

// Sniff guesses the type of a body from its leading bytes. An empty
// sample is Unknown.
func Sniff(sample []byte) string {
	if len(sample) == 0 {
		return Unknown
	}

	return mimetype.Detect(sample).String()
}

// IdentityEncoding reports whether a Content-Encoding value leaves the
// body as is.
func IdentityEncoding(enc string) bool {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "7bit", "8bit", "binary", "identity":
		return true
	default:
		return false
	}
}
