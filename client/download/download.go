package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/hfetch/client/meter"
)

// progressLogger is implemented by bodies that already count their bytes,
// such as *meter.Stream.
type progressLogger interface {
	LogProgress(logger *slog.Logger)
}

// Handle streams body to a temp file in the same directory as destPath,
// which is renamed to destPath on success. On any error the temp file is
// removed. contentLength is -1 when unknown.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	opts, err := apply(optFns)
	if err != nil {
		return err
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	if opts.progress {
		switch b := body.(type) {
		case progressLogger:
			b.LogProgress(logger)
		default:
			if contentLength > 0 {
				body = meter.Wrap(io.NopCloser(body), contentLength, nil, meter.WithProgressLog(logger))
			}
		}
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".hfetch-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	var writer io.Writer = file
	if opts.hash != nil {
		writer = io.MultiWriter(writer, opts.hash)
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return &Error{
				Err:    ErrContentLengthMismatch,
				Detail: fmt.Sprintf("expected %d bytes, body ended early: %v", contentLength, err),
			}
		}

		return fmt.Errorf("copying file body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if opts.hash != nil {
		if actual := hex.EncodeToString(opts.hash.Sum(nil)); actual != opts.expected {
			return &Error{
				Err:    ErrChecksumMismatch,
				Detail: fmt.Sprintf("expected %s, got %s", opts.expected, actual),
			}
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

// contextReader fails reads once ctx has ended.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
