package download

import (
	"errors"
	"fmt"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrDownloadCancelled     = errors.New("download cancelled")
	ErrGroupShutdown         = errors.New("download queue shut down")
	ErrBatchConfigured       = errors.New("download already belongs to a batch")
)

type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TargetError is the failure of one queued download. Name is the target's
// display name and Path its destination.
type TargetError struct {
	Name string
	Path string
	Err  error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.Name, e.Path, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}
