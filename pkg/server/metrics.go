package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus descriptors for the game server. Each
// server carries its own registry so restarts and tests never collide on
// duplicate registration.
type Metrics struct {
	server    *Server
	registry  *prometheus.Registry
	startTime time.Time

	sessionsByState  *prometheus.GaugeVec
	playersOnline    prometheus.Gauge
	connectionsTotal *prometheus.CounterVec
	commandsTotal    prometheus.Counter
	roomsTotal       prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers the server's Prometheus metrics.
func NewMetrics(s *Server) *Metrics {
	m := &Metrics{
		server:    s,
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		sessionsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "driftwood_sessions",
			Help: "Number of sessions by state.",
		}, []string{"state"}),
		playersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwood_players_online",
			Help: "Number of authenticated players.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwood_connections_total",
			Help: "Total connections since server start.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftwood_commands_processed_total",
			Help: "Total commands processed since server start.",
		}),
		roomsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwood_rooms_total",
			Help: "Number of rooms in the world.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwood_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwood_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwood_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.sessionsByState,
		m.playersOnline,
		m.connectionsTotal,
		m.commandsTotal,
		m.roomsTotal,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)
	return m
}

// ConnectionOpened counts an accepted connection by transport.
func (m *Metrics) ConnectionOpened(transport string) {
	m.connectionsTotal.WithLabelValues(transport).Inc()
}

// CommandProcessed counts one dispatched command.
func (m *Metrics) CommandProcessed() {
	m.commandsTotal.Inc()
}

// Update refreshes all gauges from current server state.
func (m *Metrics) Update() {
	for state, n := range m.server.sessions.CountByState() {
		m.sessionsByState.WithLabelValues(state).Set(float64(n))
	}
	m.playersOnline.Set(float64(m.server.players.Count()))
	m.roomsTotal.Set(float64(m.server.world.RoomCount()))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that refreshes gauges before serving.
func (m *Metrics) Handler() http.Handler {
	promHandler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promHandler.ServeHTTP(w, r)
	})
}
