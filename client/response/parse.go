// Package response reads the status line and header block of an
// HTTP/1.x reply from a line oriented connection.
//
// Some intermediaries emit a banner before the real status line, so the
// very first line is always retained and a later "HTTP/1.x " line
// supersedes it. When no status line shows up at all the code is
// [Unrecognized] and the first line is left for the caller to inspect.
package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Unrecognized is the status code reported when no status line was found.
const Unrecognized = -1

// maxHeaderBytes bounds the status line plus header block.
const maxHeaderBytes = 64 << 10 // 64KB

var (
	ErrEmptyResponse  = errors.New("empty response")
	ErrHeaderTooLarge = errors.New("response header too large")
)

// LineReader is satisfied by *conn.Conn.
type LineReader interface {
	ReadLine() (string, error)
}

// Status is the outcome of status line detection for one reply.
type Status struct {
	// Code is the three digit status code, or Unrecognized.
	Code int
	// Line is the authoritative status line. It equals First when no
	// status line was recognized.
	Line string
	// First is the first line received, verbatim.
	First string
	// Proto is the protocol token of Line, e.g. "HTTP/1.0".
	Proto string
	// Reason is the text following the code.
	Reason string
	// Noisy is set when First was not a status line but a later line was.
	Noisy bool
}

// Recognized reports whether a status line with a numeric code was found.
func (s Status) Recognized() bool {
	return s.Code != Unrecognized
}

// Informational reports a 1xx interim reply.
func (s Status) Informational() bool {
	return s.Code >= 100 && s.Code < 200
}

// Response holds a parsed status and header block. The body is left
// unread on the connection.
type Response struct {
	Status Status
	Header Header
}

// Parse reads lines from r until the blank line ending the header block or
// EOF. Interim 1xx replies are consumed and parsing continues with the
// reply that follows them. On a read error the partially parsed Response
// is returned along with the error so the first line is available for
// diagnostics.
func Parse(r LineReader) (*Response, error) {
	resp := &Response{
		Status: Status{Code: Unrecognized},
		Header: NewHeader(),
	}

	var (
		size          int
		seen          bool
		found         bool
		firstIsStatus bool
	)

	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !seen {
					return resp, ErrEmptyResponse
				}
				return resp, nil
			}
			return resp, fmt.Errorf("reading header: %w", err)
		}

		size += len(line) + 2
		if size > maxHeaderBytes {
			return resp, ErrHeaderTooLarge
		}

		if !seen {
			seen = true
			firstIsStatus = isStatusLine(line)
			resp.Status.First = line
			resp.Status.Line = line
		}

		if line == "" {
			if found && resp.Status.Informational() {
				found = false
				resp.Status = Status{Code: Unrecognized, First: resp.Status.First, Line: resp.Status.First}
				resp.Header = NewHeader()
				continue
			}
			return resp, nil
		}

		if !found && isStatusLine(line) {
			found = true
			resp.Status = parseStatusLine(line, resp.Status.First)
			resp.Status.Noisy = !firstIsStatus
			continue
		}

		if name, value, ok := parseHeaderLine(line); ok {
			resp.Header.Add(name, value)
		}
	}
}

// isStatusLine matches "HTTP/1.<digit> ".
func isStatusLine(line string) bool {
	return len(line) >= 9 &&
		strings.HasPrefix(line, "HTTP/1.") &&
		line[7] >= '0' && line[7] <= '9' &&
		line[8] == ' '
}

// parseStatusLine splits a status line such as
//
//	HTTP/1.0 200 OK
//
// into its parts. A code that is not exactly three digits leaves the
// status Unrecognized while keeping the line.
func parseStatusLine(line, first string) Status {
	st := Status{
		Code:  Unrecognized,
		Line:  line,
		First: first,
		Proto: line[:8],
	}

	rest := strings.TrimLeft(line[9:], " ")
	code, reason, _ := strings.Cut(rest, " ")
	st.Reason = strings.TrimSpace(reason)

	if len(code) != 3 {
		return st
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 {
		return st
	}
	st.Code = n

	return st
}
