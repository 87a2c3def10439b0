// Package auth holds the credentials used to answer WWW-Authenticate
// challenges: the supported schemes, an in-memory cache keyed by
// (host, port, realm), challenge parsing, and a coordinator that
// serializes interactive credential prompts.
package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrUnsupportedScheme is returned when a credential is requested for a
// scheme with no registered encoder.
var ErrUnsupportedScheme = errors.New("unsupported authentication scheme")

// Scheme is an authentication scheme understood by the client.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeBasic
)

type encoder func(user, pass string) string

type schemeInfo struct {
	name   string
	encode encoder
}

var schemes = map[Scheme]schemeInfo{
	SchemeBasic: {name: "Basic", encode: encodeBasic},
}

// ParseScheme maps a challenge scheme name to a Scheme, ignoring case.
func ParseScheme(name string) Scheme {
	for s, info := range schemes {
		if strings.EqualFold(info.name, name) {
			return s
		}
	}

	return SchemeUnknown
}

// String returns the scheme name as it appears on the wire.
func (s Scheme) String() string {
	info, ok := schemes[s]
	if !ok {
		return "unknown"
	}

	return info.name
}

// Supported reports whether credentials can be encoded for s.
func (s Scheme) Supported() bool {
	_, ok := schemes[s]
	return ok
}

func encodeBasic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
