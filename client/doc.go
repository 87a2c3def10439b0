// Package client fetches documents over HTTP/1.0, one connection per
// request, following redirects and answering Basic authentication
// challenges on the caller's behalf.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithProxy("proxy.internal", 3128),
//		client.WithPrompter(prompter),
//		client.WithReadTimeout(30 * time.Second),
//	)
//
// Invalid settings are reported as [FieldErrors].
//
// # Fetching
//
// [Client.Get], [Client.Post] and [Client.Fetch] return a [Response] whose
// Body must be closed. Bodies with a stated Content-Length are metered and
// count toward [Client.Progress]:
//
//	resp, err := c.Get(ctx, "http://example.test/index.html")
//	if err != nil {
//		return err
//	}
//	defer resp.Close()
//
// Redirects are followed up to [DefaultMaxRedirects] hops. A 401 is
// answered once per protection space, at most [DefaultMaxAuthRetries]
// times per fetch, first from the credential cache and then by prompting; a credential that is rejected again is removed from
// the cache and the fetch fails with [ErrAuthenticationFailed]. Status
// codes the client cannot recover from are returned as a [*StatusError]
// wrapping one of the sentinel errors.
//
// Targets whose scheme is not http or https are handed to a [Fetcher]
// registered with [WithSchemeHandler].
//
// # Downloading Files
//
// Stream a body directly to disk with optional checksum verification and
// progress reporting:
//
//	err = c.Download(ctx, t, "/tmp/file.bin",
//		client.WithChecksum(sha256.New(), expectedHex),
//		client.WithProgress(),
//	)
//
// For multiple concurrent downloads, use [WithBatch] to set a concurrency
// limit and [download.Result.Add] to enqueue additional files:
//
//	r, err := c.DownloadAsync(ctx, t1, "/tmp/a.bin", client.WithBatch(4))
//	r.Add(ctx, t2, "/tmp/b.bin")
//	err = r.Wait()
//
// For lower-level control see the
// [github.com/adamwoolhether/hfetch/client/download] package.
package client
