package client

import (
	"io"
	"strconv"
	"strings"

	"github.com/adamwoolhether/hfetch/client/contenttype"
	"github.com/adamwoolhether/hfetch/client/meter"
	"github.com/adamwoolhether/hfetch/client/target"
)

// sniffLen is the most body bytes inspected to guess a content type.
const sniffLen = 512

// deliver hands the reply body to the caller. A stated positive length
// wraps the body in a metered stream, otherwise the connection itself is
// the body and ends when the server closes it.
func (f *fetch) deliver(ex *exchange) (target.Target, *Response, error) {
	length := contentLength(ex)

	var body io.ReadCloser = ex.conn
	if length > 0 {
		s := meter.Wrap(ex.conn, length, f.client.counter)
		if f.client.progressLog {
			s.LogProgress(f.logger)
		}
		body = s
	}

	resp := &Response{
		Target:        ex.target,
		Status:        ex.resp.Status,
		Header:        ex.resp.Header,
		ContentType:   f.contentType(ex, length),
		ContentLength: length,
		UsingProxy:    ex.usingProxy,
		Body:          body,
	}

	f.logger.Debug("attempt", "state", stateDelivering, "content_type", resp.ContentType, "content_length", length)

	return target.Target{}, resp, nil
}

// contentType decides how the body should be treated: the Content-Type
// header, else the path's extension, else the leading bytes. Only bytes
// already read from the socket are sniffed; delivery never waits for more.
// A body with a non-identity Content-Encoding is always unknown.
func (f *fetch) contentType(ex *exchange, length int64) string {
	h := ex.resp.Header

	if !contenttype.IdentityEncoding(h.Get("Content-Encoding")) {
		return contenttype.Unknown
	}
	if ct := strings.TrimSpace(h.Get("Content-Type")); ct != "" {
		return ct
	}
	if ct, ok := f.client.types.ForPath(ex.target.Path); ok {
		return ct
	}
	if length == 0 {
		return contenttype.Unknown
	}

	n := min(sniffLen, ex.conn.Buffered())
	if length > 0 && length < int64(n) {
		n = int(length)
	}
	if n == 0 {
		return contenttype.Unknown
	}
	sample, _ := ex.conn.Peek(n)

	return contenttype.Sniff(sample)
}

// contentLength returns the stated body length, or -1.
func contentLength(ex *exchange) int64 {
	v, ok := ex.resp.Header.Lookup("Content-Length")
	if !ok {
		return -1
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}

	return n
}
