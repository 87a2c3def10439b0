// Package throttle rate-limits outbound connection opens using a
// token-bucket algorithm from [golang.org/x/time/rate].
//
// # Usage
//
// Wrap an existing dial function with [NewDialFunc]:
//
//	dial, err := throttle.NewDialFunc(
//		10, // connections per second
//		5,  // burst capacity
//		func() *slog.Logger { return slog.Default() },
//		(&net.Dialer{}).DialContext,
//	)
//	d := &conn.Dialer{DialContext: conn.DialFunc(dial)}
//
// When the rate limit is exceeded, connection opens block until a
// token becomes available or the dial context is cancelled.
package throttle
