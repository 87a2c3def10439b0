package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDialFunc_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		rps    int
		burst  int
		expErr error
	}{
		{
			name:   "Invalid RPS (zero)",
			rps:    0,
			burst:  10,
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid RPS (negative)",
			rps:    -5,
			burst:  10,
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid Burst (zero)",
			rps:    10,
			burst:  0,
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid Burst (negative)",
			rps:    10,
			burst:  -5,
			expErr: ErrMustNotBeZero,
		},
		{
			name:  "Valid input",
			rps:   10,
			burst: 20,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dial, err := NewDialFunc(tc.rps, tc.burst, func() *slog.Logger { return nil }, nil)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
			} else {
				if err != nil {
					t.Errorf("exp nil err, got: %v", err)
				}

				if dial == nil {
					t.Error("exp non-nil DialFunc")
				}
			}
		})
	}
}

// listen starts a loopback listener that accepts and immediately
// closes connections, counting each one.
func listen(t *testing.T) (string, *atomic.Int32) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var accepted atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			c.Close()
		}
	}()

	return ln.Addr().String(), &accepted
}

func TestThrottleDial_Behavior(t *testing.T) {
	checkContextDeadlineWrapped := func(t *testing.T, err error, caseName string) {
		if !errors.Is(err, ErrWaitingFailed) {
			t.Errorf("%s should have returned ErrWaitingFailed, got: %v", caseName, err)
		}
	}
	checkContextEnded := func(t *testing.T, err error, caseName string) {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s should have returned context.Canceled, got %v", caseName, err)
		}
		if !errors.Is(err, ErrContextEnded) {
			t.Errorf("%s should have returned ErrContextEnded, got: %v", caseName, err)
		}
	}

	testCases := []struct {
		name          string
		rps           int
		burst         int
		numDials      int
		dialTimeout   time.Duration
		preCancel     bool
		expectErrs    int
		errorCheck    func(t *testing.T, err error, caseName string)
		minDuration   time.Duration
		maxDuration   time.Duration
		expectReached int32
	}{
		{
			name:          "High Limits - Concurrent Load",
			rps:           10000,
			burst:         100,
			numDials:      50,
			maxDuration:   500 * time.Millisecond,
			expectReached: 50,
		},
		{
			name:          "Low Limit - Exceed Burst & Timeout Waiting",
			rps:           5,
			burst:         2,
			numDials:      5, // 2 use burst, the rest wait longer than 50ms.
			dialTimeout:   50 * time.Millisecond,
			expectErrs:    3,
			errorCheck:    checkContextDeadlineWrapped,
			expectReached: 2,
		},
		{
			name:          "Low Limit - Exceed Burst - Succeed Waiting",
			rps:           10,
			burst:         5,
			numDials:      8, // (8-5) / 10 RPS = 0.3 seconds
			dialTimeout:   time.Second,
			minDuration:   250 * time.Millisecond,
			expectReached: 8,
		},
		{
			name:          "Pre-Cancelled Context Fails Early",
			rps:           20,
			burst:         10,
			numDials:      1,
			preCancel:     true,
			expectErrs:    1,
			errorCheck:    checkContextEnded,
			maxDuration:   50 * time.Millisecond,
			expectReached: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, accepted := listen(t)

			dial, err := NewDialFunc(tc.rps, tc.burst, func() *slog.Logger { return nil }, nil)
			if err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			errs := make([]error, tc.numDials)
			start := time.Now()

			for i := range tc.numDials {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()

					var (
						ctx    context.Context
						cancel context.CancelFunc
					)
					if tc.dialTimeout > 0 {
						ctx, cancel = context.WithTimeout(t.Context(), tc.dialTimeout)
					} else {
						ctx, cancel = context.WithCancel(t.Context())
					}
					if tc.preCancel {
						cancel()
					}
					defer cancel()

					c, err := dial(ctx, "tcp", addr)
					if err != nil {
						errs[idx] = fmt.Errorf("dial %d: %w", idx, err)
						return
					}
					c.Close()
				}(i)
			}

			wg.Wait()
			duration := time.Since(start)

			failed := 0
			for _, err := range errs {
				if err != nil {
					failed++
					if tc.errorCheck != nil {
						tc.errorCheck(t, err, tc.name)
					}
				}
			}

			if failed != tc.expectErrs {
				t.Errorf("expected %d failed dials; got %d", tc.expectErrs, failed)
			}

			// Accepts race the final close; give the listener a moment.
			deadline := time.Now().Add(time.Second)
			for accepted.Load() < tc.expectReached && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			if got := accepted.Load(); got != tc.expectReached {
				t.Errorf("exp %d connections to reach the listener, got %d", tc.expectReached, got)
			}

			if tc.minDuration > 0 && duration < tc.minDuration {
				t.Errorf("dials should be slowed down by throttle (>= %v), took %v", tc.minDuration, duration)
			}
			if tc.maxDuration > 0 && duration > tc.maxDuration {
				t.Errorf("dials should be fast (< %v), took %v", tc.maxDuration, duration)
			}
		})
	}
}
