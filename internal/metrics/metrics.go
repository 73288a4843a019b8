package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/aksharnet-api/internal/model"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Prediction requests by task and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "Time spent in the predictor.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"task"}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction counts one finished request.
func (m *Metrics) ObservePrediction(task model.Task, outcome string) {
	m.predictions.WithLabelValues(string(task), outcome).Inc()
}

// Instrument times every call to p.
func (m *Metrics) Instrument(p model.Predictor) model.Predictor {
	return &timedPredictor{next: p, duration: m.duration}
}

type timedPredictor struct {
	next     model.Predictor
	duration *prometheus.HistogramVec
}

func (t *timedPredictor) Predict(ctx context.Context, task model.Task, input *model.Tensor) ([]float64, error) {
	start := time.Now()
	defer func() {
		t.duration.WithLabelValues(string(task)).Observe(time.Since(start).Seconds())
	}()
	return t.next.Predict(ctx, task, input)
}
