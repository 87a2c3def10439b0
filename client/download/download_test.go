package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamwoolhether/hfetch/client/meter"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHandle(t *testing.T) {
	body := []byte("some file contents")
	sum := sha256.Sum256(body)

	testCases := []struct {
		name    string
		length  int64
		body    io.Reader
		opts    []Option
		expErr  error
		expFile bool
	}{
		{name: "known length", length: int64(len(body)), body: bytes.NewReader(body), expFile: true},
		{name: "unknown length", length: -1, body: bytes.NewReader(body), expFile: true},
		{name: "progress", length: int64(len(body)), body: bytes.NewReader(body), opts: []Option{WithProgress()}, expFile: true},
		{name: "checksum", length: -1, body: bytes.NewReader(body), opts: []Option{WithChecksum(sha256.New(), hex.EncodeToString(sum[:]))}, expFile: true},
		{name: "checksum mismatch", length: -1, body: bytes.NewReader(body), opts: []Option{WithChecksum(sha256.New(), "00")}, expErr: ErrChecksumMismatch},
		{name: "too long", length: 4, body: bytes.NewReader(body), expErr: ErrContentLengthMismatch},
		{name: "too short", length: 100, body: bytes.NewReader(body), expErr: ErrContentLengthMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "out.bin")

			err := Handle(t.Context(), tc.body, tc.length, dest, discard(), tc.opts...)
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("exp %v, got %v", tc.expErr, err)
			}

			got, readErr := os.ReadFile(dest)
			if !tc.expFile {
				if readErr == nil {
					t.Error("exp no file on failure")
				}
				return
			}
			if readErr != nil {
				t.Fatalf("reading file: %v", readErr)
			}
			if !bytes.Equal(got, body) {
				t.Errorf("exp %q, got %q", body, got)
			}
		})
	}
}

func TestHandle_MeteredBodyReportsShortRead(t *testing.T) {
	s := meter.Wrap(io.NopCloser(strings.NewReader("abc")), 10, nil)
	dest := filepath.Join(t.TempDir(), "out.bin")

	err := Handle(t.Context(), s, 10, dest, discard(), WithProgress())

	var de *Error
	if !errors.As(err, &de) || !errors.Is(err, ErrContentLengthMismatch) {
		t.Fatalf("exp a content length Error, got %v", err)
	}
}

func TestHandle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := filepath.Join(t.TempDir(), "out.bin")

	err := Handle(ctx, strings.NewReader("data"), 4, dest, discard())
	if !errors.Is(err, ErrDownloadCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("exp ErrDownloadCancelled, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Errorf("exp an empty directory, got %d entries", len(entries))
	}
}

func TestHandle_OptionErrors(t *testing.T) {
	for name, opt := range map[string]Option{
		"nil hash":       WithChecksum(nil, "ab"),
		"empty checksum": WithChecksum(sha256.New(), ""),
	} {
		err := Handle(t.Context(), strings.NewReader(""), 0, filepath.Join(t.TempDir(), "x"), discard(), opt)
		if err == nil {
			t.Errorf("%s: exp an error", name)
		}
	}
}
