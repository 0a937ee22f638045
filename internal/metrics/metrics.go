package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CryptoScreener/internal/model"
)

// Recorder holds the screener's Prometheus collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	skippedTotal   *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	latestSignals  *prometheus.GaugeVec
	latestScanned  prometheus.Gauge
	latestScanTime prometheus.Gauge
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		scansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_scans_total",
				Help: "Total number of scans by outcome",
			},
			[]string{"exchange", "outcome"},
		),
		scanDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_scan_duration_seconds",
				Help:    "Wall time of a full scan",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		skippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_instruments_skipped_total",
				Help: "Instruments dropped from a scan by reason",
			},
			[]string{"reason"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_fetch_duration_seconds",
				Help:    "Duration of bar fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"exchange"},
		),
		latestSignals: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "screener_latest_signals",
				Help: "Records per signal in the most recent scan",
			},
			[]string{"signal"},
		),
		latestScanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "screener_latest_scanned",
			Help: "Instruments considered in the most recent scan",
		}),
		latestScanTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "screener_latest_scan_timestamp_seconds",
			Help: "Unix time the most recent scan finished",
		}),
	}
}

// RecordScan records a finished scan. outcome is ok, partial, cancelled or error.
func (r *Recorder) RecordScan(exchange, outcome string, seconds float64) {
	r.scansTotal.WithLabelValues(exchange, outcome).Inc()
	if outcome == "ok" || outcome == "partial" {
		r.scanDuration.Observe(seconds)
	}
}

// RecordSkip counts an instrument dropped for reason (fetch_error, insufficient_history, ...).
func (r *Recorder) RecordSkip(reason string) {
	r.skippedTotal.WithLabelValues(reason).Inc()
}

// RecordFetch records the latency of one bar fetch.
func (r *Recorder) RecordFetch(exchange string, seconds float64) {
	r.fetchLatency.WithLabelValues(exchange).Observe(seconds)
}

// RecordLatest publishes the signal distribution of the latest scan.
func (r *Recorder) RecordLatest(scanned int, counts map[model.Signal]int, finishedUnix float64) {
	for _, s := range model.AllSignals() {
		r.latestSignals.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	r.latestScanned.Set(float64(scanned))
	r.latestScanTime.Set(finishedUnix)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
