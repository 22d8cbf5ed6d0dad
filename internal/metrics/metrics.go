// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/lectern/pkg/domain"
)

// Metrics owns a private registry so tests and embedders never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	turns       *prometheus.CounterVec
	duration    prometheus.Histogram
	frames      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	blocks      *prometheus.CounterVec
}

// New registers the lectern collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_turns_total",
			Help: "Turns handled, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lectern_turn_duration_seconds",
			Help:    "Wall time of a turn, streaming included.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_frames_total",
			Help: "Frames emitted, by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_status_transitions_total",
			Help: "Progress record transitions, by target status.",
		}, []string{"status"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_blocks_total",
			Help: "Blocks played, by content kind and whether they were replayed from the log.",
		}, []string{"content", "replayed"}),
	}
	m.registry.MustRegister(
		m.turns, m.duration, m.frames, m.transitions, m.blocks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors. next, if given, runs after them.
func (m *Metrics) Hooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: next.OnTurnStart,
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			m.turns.WithLabelValues(e.Outcome).Inc()
			m.duration.Observe(e.Duration.Seconds())
			if next.OnTurnEnd != nil {
				next.OnTurnEnd(ctx, e)
			}
		},
		OnBlock: func(ctx context.Context, e *domain.BlockEvent) {
			replayed := "false"
			if e.Replayed {
				replayed = "true"
			}
			m.blocks.WithLabelValues(string(e.Content), replayed).Inc()
			if next.OnBlock != nil {
				next.OnBlock(ctx, e)
			}
		},
		OnStatusChange: func(ctx context.Context, e *domain.StatusEvent) {
			m.transitions.WithLabelValues(string(e.To)).Inc()
			if next.OnStatusChange != nil {
				next.OnStatusChange(ctx, e)
			}
		},
		OnFrame: func(ctx context.Context, f domain.Frame) {
			m.frames.WithLabelValues(string(f.Type)).Inc()
			if next.OnFrame != nil {
				next.OnFrame(ctx, f)
			}
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
