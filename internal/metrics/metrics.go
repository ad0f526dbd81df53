// Package metrics exposes mirror counters as Prometheus metrics. A one-shot
// CLI has no scrape endpoint, so the registry is written to a node-exporter
// textfile when the run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

const namespace = "ftp_mirror"

// Collector turns engine notifications into metrics. It owns its registry so
// several collectors can coexist in one process.
type Collector struct {
	reg *prometheus.Registry

	directoriesListed prometheus.Counter
	filesDownloaded   prometheus.Counter
	filesFailed       prometheus.Counter
	bytesWritten      prometheus.Counter
	authFailures      *prometheus.CounterVec

	lastRunDuration  prometheus.Gauge
	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// New registers the mirror metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		directoriesListed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directories_listed_total",
			Help:      "Directory listings issued, including re-listings on the way up",
		}),
		filesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_downloaded_total",
			Help:      "Files written to the local tree",
		}),
		filesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Files skipped after a failed download or local write",
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to the local tree",
		}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Failed connect or login attempts",
		}, []string{"reason"}),
		lastRunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last mirror run",
		}),
		lastRunSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last mirror run finished, 0 if it failed",
		}),
		lastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last mirror run ended",
		}),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Notify implements mirror.Observer.
func (c *Collector) Notify(n mirror.Notification) {
	switch n := n.(type) {
	case mirror.AuthenticationResult:
		if !n.OK {
			c.authFailures.WithLabelValues(string(n.Reason)).Inc()
			c.lastRunSuccess.Set(0)
		}
	case mirror.DirectoryEntered:
		c.directoriesListed.Inc()
	case mirror.DownloadFinished:
		c.filesDownloaded.Inc()
		c.bytesWritten.Add(float64(n.Bytes))
	case mirror.DownloadFailed:
		c.filesFailed.Inc()
	case mirror.MirrorFinished:
		c.endRun(n.Stats, true)
	case mirror.MirrorFailed:
		c.endRun(n.Stats, false)
	}
}

func (c *Collector) endRun(stats mirror.Stats, ok bool) {
	c.lastRunDuration.Set(stats.Duration().Seconds())

	if ok {
		c.lastRunSuccess.Set(1)
	} else {
		c.lastRunSuccess.Set(0)
	}

	if !stats.Ended.IsZero() {
		c.lastRunTimestamp.Set(float64(stats.Ended.Unix()))
	}
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// replacing it atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}

	return nil
}
