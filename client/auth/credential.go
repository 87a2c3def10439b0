package auth

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a protection space. The secret is never part of the key,
// so storing a new credential for the same key replaces the old one.
type Key struct {
	Host  string
	Port  int
	Realm string
}

// Normalize lower-cases the host so keys compare case-insensitively.
func (k Key) Normalize() Key {
	k.Host = strings.ToLower(k.Host)
	return k
}

func (k Key) String() string {
	return k.Host + ":" + strconv.Itoa(k.Port) + " realm=" + strconv.Quote(k.Realm)
}

// Credential is an encoded Authorization value for one protection space.
type Credential struct {
	Key
	Scheme Scheme
	Value  string
}

// IsZero reports whether c carries no authorization value.
func (c Credential) IsZero() bool {
	return c.Value == ""
}

// NewBasic encodes user and pass with the Basic scheme.
func NewBasic(key Key, user, pass string) Credential {
	return Credential{
		Key:    key.Normalize(),
		Scheme: SchemeBasic,
		Value:  encodeBasic(user, pass),
	}
}

// NewCredential encodes user and pass with scheme.
func NewCredential(scheme Scheme, key Key, user, pass string) (Credential, error) {
	info, ok := schemes[scheme]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	return Credential{
		Key:    key.Normalize(),
		Scheme: scheme,
		Value:  info.encode(user, pass),
	}, nil
}
