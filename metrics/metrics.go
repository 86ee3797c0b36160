// Package metrics exposes Prometheus instrumentation for the verified-run
// pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "speedrun_bot"

var (
	runsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_published_total",
		Help:      "Verified runs published to a channel.",
	}, []string{"game"})

	runsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_skipped_total",
		Help:      "Verified runs skipped because they were already posted.",
	}, []string{"game"})

	pollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_cycles_total",
		Help:      "Completed poll cycles by outcome.",
	}, []string{"game", "outcome"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Requests made to the leaderboard service.",
	}, []string{"endpoint", "outcome"})

	leaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_cache_total",
		Help:      "Leaderboard snapshot cache lookups.",
	}, []string{"result"})

	postedRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "posted_runs",
		Help:      "Run ids held in the posted-run set.",
	})
)

func RunPublished(game string) {
	runsPublished.WithLabelValues(game).Inc()
}

func RunSkipped(game string) {
	runsSkipped.WithLabelValues(game).Inc()
}

// PollCycle records one finished poll cycle. A nil error counts as "ok".
func PollCycle(game string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pollCycles.WithLabelValues(game, outcome).Inc()
}

func UpstreamRequest(endpoint, outcome string) {
	upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

func LeaderboardCacheHit() {
	leaderboardCache.WithLabelValues("hit").Inc()
}

func LeaderboardCacheMiss() {
	leaderboardCache.WithLabelValues("miss").Inc()
}

func SetPostedRuns(n int) {
	postedRuns.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("[Metrics] Shutdown failed")
		}
	}()

	log.Info().Msgf("[Metrics] Serving on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
