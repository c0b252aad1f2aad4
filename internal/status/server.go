// Package status exposes the gate's progress over HTTP while the
// supervisor waits. The server is optional and dies with the process
// image at handoff; it exists so an orchestrator can probe /healthz and
// Prometheus can scrape the attempt counters during a slow startup.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/TheBearodactyl/apiodactyl-v2/internal/gate"
	"github.com/TheBearodactyl/apiodactyl-v2/pkg/logging"
)

// Source reports the gate's current position for the health endpoint
type Source interface {
	State() gate.State
	Attempts() int
}

// Server serves /healthz and /metrics while the gate runs
type Server struct {
	addr   string
	src    Source
	target string
	logger *logging.Logger

	registry      *prometheus.Registry
	attemptsTotal *prometheus.CounterVec
	readyGauge    prometheus.Gauge
	lastProbeSecs prometheus.Gauge

	httpSrv *http.Server
}

// New builds a status server around a gate
func New(addr string, src Source, target string, logger *logging.Logger) *Server {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	s := &Server{
		addr:     addr,
		src:      src,
		target:   target,
		logger:   logger,
		registry: registry,
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readygate_probe_attempts_total",
			Help: "Probe attempts made by the readiness gate, by result.",
		}, []string{"result"}),
		readyGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "readygate_ready",
			Help: "1 once the datastore has been confirmed ready.",
		}),
		lastProbeSecs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "readygate_last_probe_duration_seconds",
			Help: "Duration of the most recent probe attempt.",
		}),
	}

	// Host gauges, same shape the worker exporters use
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readygate_host_memory_available_bytes",
		Help: "Available host memory at scrape time.",
	}, func() float64 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0
		}
		return float64(vm.Available)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "readygate_host_cpu_count",
		Help: "Logical CPUs visible to the supervisor.",
	}, func() float64 {
		return float64(runtime.NumCPU())
	})

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ObserveAttempt records one probe attempt; wired as the gate's observer
func (s *Server) ObserveAttempt(attempt int, elapsed time.Duration, err error) {
	s.lastProbeSecs.Set(elapsed.Seconds())
	if err != nil {
		s.attemptsTotal.WithLabelValues("failure").Inc()
		return
	}
	s.attemptsTotal.WithLabelValues("success").Inc()
	s.readyGauge.Set(1)
}

// Start serves in the background. Listen errors are logged, not fatal:
// a broken status endpoint must never block the gate itself.
func (s *Server) Start() {
	go func() {
		s.logger.Info(fmt.Sprintf("Status server listening on %s", s.addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(fmt.Sprintf("Status server: %v", err))
		}
	}()
}

// Handler exposes the router (used by tests)
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

type healthzResponse struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Target   string `json:"target"`
}

// handleHealthz reports 200 once ready, 503 while waiting or exhausted
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	state := s.src.State()

	code := http.StatusServiceUnavailable
	if state == gate.StateReady {
		code = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(healthzResponse{
		State:    state.String(),
		Attempts: s.src.Attempts(),
		Target:   s.target,
	})
}
