package commands

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// pushReport sends the run results, together with the runtime collectors, to
// a Prometheus Pushgateway grouped by plugin.
func pushReport(gatewayURL, job string, report runReport) error {
	registry := prometheus.NewRegistry()

	peaks := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dsplug_run_output_peak",
		Help: "Peak absolute sample value of an output channel during the run",
	}, []string{"port", "channel"})
	controls := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dsplug_run_control_value",
		Help: "Normalized value of a numerical output control port after the run",
	}, []string{"port"})
	blocks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dsplug_run_blocks",
		Help: "Number of blocks processed by the run",
	})
	registry.MustRegister(peaks, controls, blocks)

	for _, p := range report.Peaks {
		peaks.WithLabelValues(p.Port, strconv.Itoa(p.Channel)).Set(p.Peak)
	}
	for _, c := range report.Controls {
		if c.Numerical {
			controls.WithLabelValues(c.Port).Set(c.Number)
		}
	}
	blocks.Set(float64(report.Blocks))

	return push.New(gatewayURL, job).
		Gatherer(prometheus.Gatherers{registry, prometheus.DefaultGatherer}).
		Grouping("plugin", report.Plugin).
		Push()
}
