package target

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolver parses URLs and resolves references such as a Location header
// against the target that produced them.
type Resolver interface {
	Parse(raw string) (Target, error)
	Resolve(base Target, ref string) (Target, error)
}

// URLResolver is the default Resolver, built on net/url.
type URLResolver struct{}

// Parse calls the package level Parse.
func (URLResolver) Parse(raw string) (Target, error) {
	return Parse(raw)
}

// Resolve resolves ref against base. The result refers back to base and
// carries no post data.
func (URLResolver) Resolve(base Target, ref string) (Target, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return Target{}, fmt.Errorf("%w: reference %q: %w", ErrInvalid, ref, err)
	}

	t, err := fromURL(base.URL().ResolveReference(r))
	if err != nil {
		return Target{}, err
	}
	t.Referrer = base.String()

	return t, nil
}
