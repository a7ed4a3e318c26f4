// Package metrics exposes protocol engine and workflow counters via
// Prometheus, grounded on runZeroInc-sockstats' pkg/exporter (simplified
// to direct counter/gauge registration since there is a single engine
// and transport per process, not a per-connection collector).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric this driver exposes. A nil *Registry is
// valid everywhere it's threaded through (engine, workflow) and simply
// means metrics are disabled.
type Registry struct {
	FramesSent      prometheus.Counter
	FramesReceived  *prometheus.CounterVec
	CrcErrors       prometheus.Counter
	NaksReceived    prometheus.Counter
	Retransmits     prometheus.Counter
	UploadProgress  prometheus.Gauge
	ReadProgress    prometheus.Gauge
}

// New creates a Registry and registers every metric with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blhost_frames_sent_total",
			Help: "Total number of framing packets sent to the target.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blhost_frames_received_total",
			Help: "Total number of framing packets received from the target, by type.",
		}, []string{"type"}),
		CrcErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blhost_crc_errors_total",
			Help: "Total number of frames dropped for a CRC mismatch.",
		}),
		NaksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blhost_naks_received_total",
			Help: "Total number of NAK frames received.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blhost_retransmits_total",
			Help: "Total number of packets retransmitted after a NAK.",
		}),
		UploadProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blhost_upload_progress_ratio",
			Help: "Progress of the in-flight upload operation, in percent.",
		}),
		ReadProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blhost_read_progress_ratio",
			Help: "Progress of the in-flight read operation, in percent.",
		}),
	}

	reg.MustRegister(r.FramesSent, r.FramesReceived, r.CrcErrors, r.NaksReceived, r.Retransmits,
		r.UploadProgress, r.ReadProgress)

	return r
}
