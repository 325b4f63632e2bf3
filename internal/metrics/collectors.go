package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/logger"
)

// RegistryCollector reports model counts per tag at scrape time
type RegistryCollector struct {
	log        *logger.Logger
	models     model.Repository
	algorithms func() []model.Algorithm

	modelsDesc  *prometheus.Desc
	trainedDesc *prometheus.Desc
}

// NewRegistryCollector creates a collector over the model registry
func NewRegistryCollector(log *logger.Logger, models model.Repository, algorithms func() []model.Algorithm) *RegistryCollector {
	return &RegistryCollector{
		log:        log.With("component", "registry_collector"),
		models:     models,
		algorithms: algorithms,

		modelsDesc: prometheus.NewDesc(
			namespace+"_registry_models",
			"Model records stored per tag",
			[]string{"algorithm", "tag"}, nil,
		),
		trainedDesc: prometheus.NewDesc(
			namespace+"_registry_trained_models",
			"Trained model records stored per tag",
			[]string{"algorithm", "tag"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.modelsDesc
	ch <- c.trainedDesc
}

// Collect implements prometheus.Collector
func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, alg := range c.algorithms() {
		tags, err := c.models.ListTags(ctx, alg)
		if err != nil {
			c.log.Warnw("failed to collect registry stats", "algorithm", alg, "error", err)
			continue
		}
		for _, s := range tags {
			ch <- prometheus.MustNewConstMetric(c.modelsDesc, prometheus.GaugeValue, float64(s.Models), alg.String(), s.Tag)
			ch <- prometheus.MustNewConstMetric(c.trainedDesc, prometheus.GaugeValue, float64(s.Trained), alg.String(), s.Tag)
		}
	}
}
