package throttle

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the throttler's
// connections per second and burst rate.
type Config struct {
	RPS   int `validate:"gt=0"`
	Burst int `validate:"gt=0"`
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// throttle wraps a DialFunc, using the time/rate token
// bucket limiter to restrict outbound connection opens.
type throttle struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	next    DialFunc
	logFn   func() *slog.Logger
}
