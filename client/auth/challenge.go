package auth

import (
	"errors"
	"strings"
)

// ErrMalformedChallenge is returned for an empty or unparsable
// WWW-Authenticate value.
var ErrMalformedChallenge = errors.New("malformed authentication challenge")

// Challenge is a parsed WWW-Authenticate header value.
type Challenge struct {
	Scheme Scheme
	Name   string // scheme as sent by the server
	Realm  string
	Params map[string]string
}

// ParseChallenge parses a single challenge such as
//
//	Basic realm="WallyWorld", charset="UTF-8"
//
// Parameter names are lower-cased. Unquoted values are accepted.
func ParseChallenge(header string) (Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Challenge{}, ErrMalformedChallenge
	}

	name, rest, _ := strings.Cut(header, " ")
	if strings.Contains(name, "=") {
		return Challenge{}, ErrMalformedChallenge
	}

	ch := Challenge{
		Scheme: ParseScheme(name),
		Name:   name,
		Params: make(map[string]string),
	}

	rest = strings.TrimSpace(rest)
	for rest != "" {
		var key, val string
		var err error

		key, val, rest, err = nextParam(rest)
		if err != nil {
			return Challenge{}, err
		}
		if _, dup := ch.Params[key]; !dup {
			ch.Params[key] = val
		}
	}

	ch.Realm = ch.Params["realm"]

	return ch, nil
}

// nextParam consumes one name=value pair and any trailing comma.
func nextParam(s string) (key, val, rest string, err error) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return "", "", "", ErrMalformedChallenge
	}

	key = strings.ToLower(strings.TrimSpace(s[:eq]))
	s = strings.TrimLeft(s[eq+1:], " \t")

	if strings.HasPrefix(s, `"`) {
		var b strings.Builder
		i := 1
		for ; i < len(s); i++ {
			c := s[i]
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
				continue
			}
			if c == '"' {
				break
			}
			b.WriteByte(c)
		}
		if i >= len(s) {
			return "", "", "", ErrMalformedChallenge
		}
		val = b.String()
		s = s[i+1:]
	} else {
		end := strings.IndexByte(s, ',')
		if end < 0 {
			end = len(s)
		}
		val = strings.TrimSpace(s[:end])
		s = s[end:]
	}

	s = strings.TrimLeft(s, " \t")
	s = strings.TrimPrefix(s, ",")

	return key, val, strings.TrimSpace(s), nil
}
