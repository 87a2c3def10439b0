// Package hfetch exposes the client builder.
package hfetch

import (
	"github.com/adamwoolhether/hfetch/client"
)

// NewClient instantiates a new *Client with the provided options.
// If not specified, connections are dialed directly with no timeouts and
// credentials are never prompted for.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
