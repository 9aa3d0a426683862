package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/snarg/meetbrief/internal/media"
)

// PipelineStats provides the metrics collector access to pipeline state.
type PipelineStats interface {
	InFlight() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	stats PipelineStats
	tools map[string]string // tool name → binary

	inFlight      *prometheus.Desc
	toolAvailable *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// stats may be nil (in-flight reports 0). tools maps a label such as
// "ffprobe" to the configured binary path.
func NewCollector(stats PipelineStats, tools map[string]string) *Collector {
	return &Collector{
		stats: stats,
		tools: tools,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "submissions_in_flight"),
			"Submissions currently being processed.",
			nil, nil,
		),
		toolAvailable: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tool_available"),
			"Whether an external media tool resolves in PATH (1) or not (0).",
			[]string{"tool"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.toolAvailable
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var inFlight float64
	if c.stats != nil {
		inFlight = float64(c.stats.InFlight())
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, inFlight)

	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := 0.0
		if media.ToolAvailable(c.tools[name]) {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.toolAvailable, prometheus.GaugeValue, v, name)
	}
}
