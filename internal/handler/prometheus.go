package handler

import (
	"context"
	"net/http"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh triggers.
const (
	TriggerAPI       = "api"
	TriggerScheduled = "scheduled"
)

// Prometheus holds the gateway's scrape collectors on their own registry.
type Prometheus struct {
	Registry   *prometheus.Registry
	AIOutcomes *prometheus.CounterVec
	ImportRows *prometheus.CounterVec
	Refreshes  *prometheus.CounterVec
}

// NewPrometheus creates and registers the collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		Registry: prometheus.NewRegistry(),
		AIOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upahead_ai_attempts_total",
				Help: "AI task creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		ImportRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upahead_import_rows_total",
				Help: "Imported spreadsheet rows by validity",
			},
			[]string{"kind"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upahead_store_refreshes_total",
				Help: "Task store refreshes by trigger and result",
			},
			[]string{"trigger", "result"},
		),
	}
	p.Registry.MustRegister(
		p.AIOutcomes,
		p.ImportRows,
		p.Refreshes,
		collectors.NewGoCollector(),
	)
	return p
}

// Handler serves the registry in the exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})
}

// ObserveAIOutcome fits ai.OutcomeRecorder.
func (p *Prometheus) ObserveAIOutcome(_ context.Context, outcome string) {
	if p == nil {
		return
	}
	p.AIOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveImport fits the importer result hook.
func (p *Prometheus) ObserveImport(_ context.Context, res *model.ImportResult) {
	if p == nil || res == nil {
		return
	}
	p.ImportRows.WithLabelValues("valid").Add(float64(res.ValidRows))
	p.ImportRows.WithLabelValues("invalid").Add(float64(res.InvalidRows))
}

// ObserveRefresh counts one store refresh.
func (p *Prometheus) ObserveRefresh(trigger string, err error) {
	p.observeRefresh(trigger, err)
}

func (p *Prometheus) observeRefresh(trigger string, err error) {
	if p == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.Refreshes.WithLabelValues(trigger, result).Inc()
}
