// Package download saves fetched bodies to disk with optional checksum
// validation and progress reporting. It is where callers send bodies whose
// content type is unknown.
//
// # Single Download
//
// [Handle] writes the body to a temporary file alongside the destination
// path, then atomically renames it on success:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// # Batches
//
// A [Queue] downloads targets through a [SaveFunc] with an optional
// concurrency limit. [Start] opens a queue sized by [WithBatch] and returns
// a [Result] that further targets can join with [Result.Add]. Every
// download on a queue shares one progress counter, and [Queue.Wait] joins
// the failures as [*TargetError] values naming each target.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/hfetch/client] package, which invokes
// Handle and Start internally and re-exports the options as
// client.With* functions.
package download
