package ftpclient

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

func limiterFor(t *testing.T, bandwidthLimit string) *BandwidthLimiter {
	t.Helper()

	r := &config.Resolved{Config: *config.DefaultConfig()}
	r.Mirror.BandwidthLimit = bandwidthLimit

	limit, err := r.BandwidthRate()
	require.NoError(t, err)

	return NewBandwidthLimiter(limit, testLogger(t))
}

func TestNewBandwidthLimiter_DefaultIsUnlimited(t *testing.T) {
	bl := limiterFor(t, config.DefaultConfig().Mirror.BandwidthLimit)
	assert.Nil(t, bl)

	r := strings.NewReader("payload")
	assert.Same(t, r, bl.WrapReader(context.Background(), r))
}

func TestThrottledReader_ReadCappedAtBurst(t *testing.T) {
	bl := limiterFor(t, "1KB/s")
	require.NotNil(t, bl)

	buf := make([]byte, 64*1024)
	n, err := bl.WrapReader(context.Background(), bytes.NewReader(make([]byte, 10_000))).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2000, n, "a single read is capped at the burst")
}

func TestThrottledReader_HonorsRate(t *testing.T) {
	// 1 KB/s with a 2 KB bucket: the third and fourth KB cost a second each.
	bl := limiterFor(t, "1KB/s")

	start := time.Now()
	got, err := io.ReadAll(bl.WrapReader(context.Background(), bytes.NewReader(make([]byte, 4000))))
	require.NoError(t, err)

	assert.Len(t, got, 4000)
	assert.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
}

func TestThrottledReader_StopsOnCancel(t *testing.T) {
	bl := limiterFor(t, "1KB/s")

	ctx, cancel := context.WithCancel(context.Background())
	r := bl.WrapReader(ctx, strings.NewReader(strings.Repeat("x", 100_000)))

	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_RetrieveThrottled(t *testing.T) {
	body := strings.Repeat("m", 3000)
	conn := &fakeConn{files: map[string]string{"pub/mirror.iso": body}}

	c := New(context.Background(), Options{
		Logger:  testLogger(t),
		Limiter: limiterFor(t, "1KB/s"),
		Dial: func(context.Context, string) (Conn, error) {
			return conn, nil
		},
	})
	t.Cleanup(func() { c.Close() })

	c.Connect("ftp.example.com")

	start := time.Now()
	events := collect(t, c, c.Retrieve("pub/mirror.iso"))
	require.NoError(t, finished(t, events).Err)

	var got strings.Builder
	for _, ev := range events {
		if d, ok := ev.(mirror.DataReceived); ok {
			got.Write(d.Chunk)
		}
	}

	assert.Equal(t, body, got.String())
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}
