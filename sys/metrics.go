package sys

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deme_votes_total",
		Help: "Attendance button presses by resulting status and outcome.",
	}, []string{"status", "outcome"})

	AbsenceOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deme_absence_outcomes_total",
		Help: "Closed absence-reason requests by outcome.",
	}, []string{"outcome"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deme_active_sessions",
		Help: "Poll sessions currently accepting votes.",
	})

	StoreRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deme_store_retries_total",
		Help: "Store writes that had to be retried.",
	})

	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(VotesTotal, AbsenceOutcomesTotal, ActiveSessions, StoreRetriesTotal)
}

// StartMetricsServer serves /metrics on addr until ctx is cancelled. An empty addr disables it.
func StartMetricsServer(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	SafeGo(func() {
		LogInfo(MsgMetricsListening, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			LogError(MsgMetricsServeFail, err)
		}
	})

	SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
}
