package infer

import (
	"context"
	"errors"
	"time"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
)

// runConfig holds the options of a single Run
type runConfig struct {
	timeout time.Duration
}

// RunOption configures Run
type RunOption func(*runConfig)

// WithTimeout bounds the forward pass. Zero disables the bound. The
// deadline is delivered to the session through its context; backends that
// cannot interrupt the device report the overrun once the call returns.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// Run triggers exactly one synchronous forward pass over the buffers bound
// to the session and returns the wall-clock time it took
func Run(ctx context.Context, session device.Session, opts ...RunOption) (time.Duration, error) {
	if session == nil {
		return 0, &InferenceError{Status: driver.StatusContextInvalid, Err: ErrNilSession}
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	start := time.Now()
	err := session.Run(ctx)
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause := error(ErrInferenceTimeout)
		if err != nil {
			cause = errors.Join(ErrInferenceTimeout, err)
		}
		return elapsed, &InferenceError{Status: driver.StatusTimeout, Err: cause}
	}
	if err != nil {
		return elapsed, &InferenceError{Status: driver.StatusOf(err), Err: err}
	}
	return elapsed, nil
}
