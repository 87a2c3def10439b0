package contenttype

import (
	"strings"
	"sync"
	"testing"
)

func TestTable_ForPath(t *testing.T) {
	table := Default()

	testCases := []struct {
		path string
		exp  string
		ok   bool
	}{
		{path: "/", exp: HTML, ok: true},
		{path: "/docs/", exp: HTML, ok: true},
		{path: "/index.html", exp: HTML, ok: true},
		{path: "/INDEX.HTM", exp: HTML, ok: true},
		{path: "/pic.JPG", exp: "image/jpeg", ok: true},
		{path: "/a.tar.gz", exp: "application/gzip", ok: true},
		{path: "/readme", ok: false},
		{path: "/file.unknownext", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := table.ForPath(tc.path)
			if ok != tc.ok {
				t.Fatalf("exp ok=%v, got %v", tc.ok, ok)
			}
			if got != tc.exp {
				t.Errorf("exp %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestTable_Add(t *testing.T) {
	table := New()
	if _, ok := table.ForExtension("md"); ok {
		t.Fatal("exp empty table")
	}

	table.Add("MD", "text/markdown")

	for _, ext := range []string{"md", ".md", ".MD"} {
		if got, _ := table.ForExtension(ext); got != "text/markdown" {
			t.Errorf("%s: exp text/markdown, got %q", ext, got)
		}
	}

	if _, ok := Default().ForExtension("md"); ok {
		t.Error("Default must return an independent table")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := Default()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			table.Add("x"+strings.Repeat("y", i), "application/x-test")
		}()
		go func() {
			defer wg.Done()
			table.ForPath("/index.html")
		}()
	}
	wg.Wait()
}

func TestSniff(t *testing.T) {
	testCases := []struct {
		name   string
		sample []byte
		prefix string
	}{
		{name: "empty", sample: nil, prefix: Unknown},
		{name: "html", sample: []byte("<!DOCTYPE html><html><body>hi</body></html>"), prefix: "text/html"},
		{name: "plain", sample: []byte("hello"), prefix: "text/plain"},
		{name: "png", sample: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), prefix: "image/png"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.sample); !strings.HasPrefix(got, tc.prefix) {
				t.Errorf("exp prefix %q, got %q", tc.prefix, got)
			}
		})
	}
}

func TestIdentityEncoding(t *testing.T) {
	for enc, exp := range map[string]bool{
		"":         true,
		"7bit":     true,
		"8BIT":     true,
		" binary":  true,
		"identity": true,
		"gzip":     false,
		"x-gzip":   false,
		"deflate":  false,
	} {
		if got := IdentityEncoding(enc); got != exp {
			t.Errorf("%q: exp %v, got %v", enc, exp, got)
		}
	}
}
