package client

import (
	"context"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/target"
)

const defaultPostType = "application/x-www-form-urlencoded"

// requestWriter is the write side of a connection.
type requestWriter interface {
	WriteLine(s string) error
	Write(p []byte) (int, error)
	Flush() error
}

// request is everything sent for one attempt.
type request struct {
	target     target.Target
	absolute   bool
	userAgent  string
	accept     string
	credential auth.Credential
	extra      map[string]string
}

// write sends the request:
//
//	GET /index.html HTTP/1.0
//	User-Agent: hfetch/1.0
//	Accept: text/html, image/gif, image/jpeg, *; q=.2, */*; q=.2
//	Host: example.test
//
// followed by Referer, Authorization and, for POST, Content-Type,
// Content-Length and the body.
func (r request) write(w requestWriter) error {
	t := r.target

	uri := t.RequestURI()
	if r.absolute {
		uri = t.String()
	}

	lines := []string{
		t.Method() + " " + uri + " HTTP/1.0",
		"User-Agent: " + r.userAgent,
		"Accept: " + r.accept,
		"Host: " + t.HostPort(),
	}
	if t.Referrer != "" {
		lines = append(lines, "Referer: "+t.Referrer)
	}
	if !r.credential.IsZero() {
		lines = append(lines, "Authorization: "+r.credential.Value)
	}

	keys := make([]string, 0, len(r.extra))
	for k := range r.extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+r.extra[k])
	}

	if t.PostData != nil {
		ct := t.PostType
		if ct == "" {
			ct = defaultPostType
		}
		lines = append(lines,
			"Content-Type: "+ct,
			"Content-Length: "+strconv.Itoa(len(t.PostData)),
		)
	}

	for _, line := range append(lines, "") {
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}

	if len(t.PostData) > 0 {
		if _, err := w.Write(t.PostData); err != nil {
			return err
		}
	}

	return w.Flush()
}

// propagated returns the trace headers the global propagator injects for
// ctx. The default propagator injects none.
func propagated(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return carrier
}
