// Package metrics holds the Prometheus collectors exported by the host runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a library open, used as the "result" label.
const (
	OpenHit    = "hit"
	OpenLoaded = "loaded"
	OpenEmpty  = "empty"
	OpenFailed = "failed"
)

var (
	LibrariesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsplug_libraries_open",
		Help: "Number of plugin libraries currently held by the library cache",
	})

	LibraryOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsplug_library_opens_total",
		Help: "Library open requests by result",
	}, []string{"result"})

	InstancesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsplug_instances_active",
		Help: "Number of live plugin instances",
	})

	ProcessCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dsplug_process_calls_total",
		Help: "Number of process callbacks dispatched to plugin instances",
	})

	Diagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dsplug_diagnostics_total",
		Help: "Diagnostics reported on the runtime side-channel, by error kind",
	}, []string{"kind"})
)

// BuildInfo registers the build information gauge. It is called once from main
// after the linker-injected version variables are known.
func BuildInfo(version, commit, buildDate string) prometheus.Gauge {
	g := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dsplug_build_info",
		Help: "DSPlug host build information",
		ConstLabels: map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		},
	})
	g.Set(1)
	return g
}
