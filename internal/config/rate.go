package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrInvalidRate is wrapped by every bandwidth_limit parse failure.
var ErrInvalidRate = errors.New("invalid transfer rate")

// rateSuffix may follow a bandwidth_limit value ("5MB/s").
const rateSuffix = "/s"

// Rate is a transfer rate in bytes per second. Zero means unlimited.
type Rate int64

// ParseRate reads a [mirror] bandwidth_limit value. The unit is any SI or
// IEC byte unit understood by go-humanize, optionally followed by "/s":
// "5MB/s", "512KiB", "1024". Empty and "0" mean unlimited.
func ParseRate(s string) (Rate, error) {
	v := strings.TrimSpace(s)
	if strings.HasSuffix(strings.ToLower(v), rateSuffix) {
		v = strings.TrimSpace(v[:len(v)-len(rateSuffix)])
	}

	if v == "" || v == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidRate, s, err)
	}

	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w %q: too large", ErrInvalidRate, s)
	}

	return Rate(n), nil
}

// Unlimited reports whether r disables throttling.
func (r Rate) Unlimited() bool { return r <= 0 }

func (r Rate) String() string {
	if r.Unlimited() {
		return "unlimited"
	}

	return humanize.Bytes(uint64(r)) + rateSuffix
}
