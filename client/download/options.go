package download

import (
	"errors"
	"fmt"
	"hash"
)

// Option defines optional settings for downloading files.
//
// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
//
// WithProgress enables periodic download progress logging via the
// logger supplied to Handle.
//
// WithSkipExisting causes Handle to return nil immediately when
// the destination file already exists, avoiding a redundant download.
//
// WithBatch sizes the queue opened by Start to maxConcurrent downloads at
// once. Downloads joining an existing queue cannot carry it.
type Option func(*options) error

type options struct {
	hash         hash.Hash
	expected     string
	progress     bool
	skipExisting bool
	batch        *int
}

func apply(optFns []Option) (options, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, fmt.Errorf("applying option: %w", err)
		}
	}

	return opts, nil
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.hash = h
		opts.expected = expected
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

func WithBatch(maxConcurrent int) Option {
	return func(opts *options) error {
		if opts.batch != nil {
			return errors.New("batch already configured")
		}
		opts.batch = &maxConcurrent
		return nil
	}
}
