// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

type Config struct {
	Enabled bool
	Path    string
	Build   BuildInfo
}

// Provider is the service registry. Collectors from internal/core/observability
// are registered into it at startup.
type Provider struct {
	reg     *prometheus.Registry
	path    string
	enabled bool
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "estate_search_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version", "revision", "build_date"})
	build.WithLabelValues(v.Version, v.Revision, v.BuildDate).Set(1)

	started := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "estate_search_start_time_seconds",
		Help: "Unix time the service started.",
	})
	started.Set(float64(time.Now().Unix()))
	reg.MustRegister(build, started)

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	return &Provider{reg: reg, path: path, enabled: cfg.Enabled}
}

// Enabled reports whether the scrape endpoint should be mounted. The registry
// collects either way.
func (p *Provider) Enabled() bool { return p != nil && p.enabled }

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{
		Registry:          p.reg,
		EnableOpenMetrics: true,
	})
}

// Path is where the handler should be mounted.
func (p *Provider) Path() string { return p.path }

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }
