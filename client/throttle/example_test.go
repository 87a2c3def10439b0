package throttle_test

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/adamwoolhether/hfetch/client/throttle"
)

func ExampleNewDialFunc() {
	dial, err := throttle.NewDialFunc(
		10, // connections per second
		5,  // burst capacity
		func() *slog.Logger { return slog.Default() },
		(&net.Dialer{}).DialContext,
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = dial

	fmt.Println("throttled dialer created")
	// Output: throttled dialer created
}
