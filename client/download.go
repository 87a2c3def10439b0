package client

import (
	"context"
	"errors"
	"fmt"
	"hash"

	"github.com/adamwoolhether/hfetch/client/download"
	"github.com/adamwoolhether/hfetch/client/target"
)

// DownloadOption is a functional option for [Client.Download] and
// [Client.DownloadAsync].
type DownloadOption = download.Option

// ————————————————————————————————————————————————————————————————————
// Type aliases – re-export user-facing types from [download].
// ————————————————————————————————————————————————————————————————————

type (
	// DownloadError wraps a sentinel error with additional detail.
	DownloadError = download.Error

	// DownloadResult represents an in-flight or completed async download.
	DownloadResult = download.Result

	// DownloadQueue runs a batch of downloads with bounded concurrency.
	DownloadQueue = download.Queue

	// DownloadTargetError names the target of a failed queued download.
	DownloadTargetError = download.TargetError
)

// ————————————————————————————————————————————————————————————————————
// Sentinel errors
// ————————————————————————————————————————————————————————————————————

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrDownloadCancelled indicates the download was cancelled via context.
	ErrDownloadCancelled = download.ErrDownloadCancelled

	// ErrGroupShutdown indicates the download queue was shut down.
	ErrGroupShutdown = download.ErrGroupShutdown

	// ErrBatchConfigured indicates WithBatch was passed to a download
	// joining an existing queue.
	ErrBatchConfigured = download.ErrBatchConfigured
)

// ————————————————————————————————————————————————————————————————————
// Download option forwarding functions
// ————————————————————————————————————————————————————————————————————

// WithChecksum enables checksum validation of the downloaded file.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) DownloadOption {
	return download.WithChecksum(h, expected)
}

// WithProgress enables periodic download progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithSkipExisting causes a download to return nil immediately when
// the destination file already exists.
func WithSkipExisting() DownloadOption { return download.WithSkipExisting() }

// WithBatch activates batch mode by creating a download queue with the given
// concurrency limit. If maxConcurrent <= 0, concurrency is unlimited.
func WithBatch(maxConcurrent int) DownloadOption { return download.WithBatch(maxConcurrent) }

// Download fetches t and streams the body to destPath. Data streams to a
// temp file in the same directory, which is renamed to destPath on success
// or removed on failure. Replies outside 2xx are not saved.
func (c *Client) Download(ctx context.Context, t target.Target, destPath string, opts ...DownloadOption) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	resp, err := c.Fetch(ctx, t)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err := resp.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if code := resp.Status.Code; code != -1 && (code < 200 || code > 299) {
		return &StatusError{StatusCode: code, StatusLine: resp.Status.Line, Name: resp.Target.Name(), Err: ErrUnexpectedStatusCode}
	}

	if err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, c.logger, opts...); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	return nil
}

// DownloadAsync runs [Client.Download] in the background on a new queue.
// Use [WithBatch] to bound its concurrency and [download.Result.Add] to
// queue more targets. The queue reports progress from the client's counter.
func (c *Client) DownloadAsync(ctx context.Context, t target.Target, destPath string, opts ...DownloadOption) (*DownloadResult, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}

	return download.Start(ctx, c.Download, c.counter, t, destPath, opts...)
}
