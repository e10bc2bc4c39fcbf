package commands

import (
	"time"

	"podrepo-agent/internal/catalog"
	"podrepo-agent/internal/client"
	"podrepo-agent/internal/metrics"
	"podrepo-agent/internal/refresh"
	"podrepo-agent/internal/repositories"
	"podrepo-agent/internal/updater"
	"podrepo-agent/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// agent bundles the long-lived components shared by the commands
type agent struct {
	cfg         *models.Config
	catalog     *catalog.Catalog
	coordinator *refresh.Coordinator
	client      *client.Client
	registry    *prometheus.Registry
	metrics     *metrics.Collector
}

// newAgent wires the catalog to the repos directory and the updater
func newAgent() *agent {
	cfg := cfgManager.GetConfig()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	httpClient := client.New(cfg, logger)
	enumerator := repositories.New(logger, cfg.ReposDir)
	enumerator.SetTimeout(time.Duration(cfg.DiscoveryTimeout) * time.Second)
	executor := updater.New(logger, cfg, httpClient)

	cat := catalog.New(logger)
	coordinator := refresh.New(logger, cat, enumerator, executor, refresh.Options{
		Prune:   cfg.PruneOnDiscovery,
		Metrics: collector,
	})

	return &agent{
		cfg:         cfg,
		catalog:     cat,
		coordinator: coordinator,
		client:      httpClient,
		registry:    registry,
		metrics:     collector,
	}
}

// Close stops event delivery
func (a *agent) Close() {
	a.catalog.Close()
}
