package ftpclient

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/tonimelisma/ftp-mirror/internal/config"
)

// burstSeconds sizes the token bucket so a short stall on the data
// connection can be made up on the next read.
const burstSeconds = 2

// BandwidthLimiter throttles retrieve data connections. A nil limiter means
// unlimited.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter returns a limiter for the configured bandwidth_limit,
// or nil when the rate is unlimited.
func NewBandwidthLimiter(limit config.Rate, logger *slog.Logger) *BandwidthLimiter {
	if limit.Unlimited() {
		return nil
	}

	burst := int(limit) * burstSeconds

	logger.Info("throttling retrieves",
		slog.String("bandwidth_limit", limit.String()),
		slog.Int("burst", burst),
	)

	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

// WrapReader returns r throttled to the limit. A nil receiver returns r.
func (bl *BandwidthLimiter) WrapReader(ctx context.Context, r io.Reader) io.Reader {
	if bl == nil {
		return r
	}

	return &throttledReader{ctx: ctx, r: r, limiter: bl.limiter}
}

// throttledReader never reads more than one burst at a time and waits for
// the bucket to admit what it read before returning.
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := t.r.Read(p)
	if n > 0 {
		if waitErr := t.limiter.WaitN(t.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}
