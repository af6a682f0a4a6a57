// Package metrics registers the hub's Prometheus instrumentation, using a
// nil-receiver no-op pattern and "_total"/"_seconds" naming across
// per-subsystem counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Hub holds every Prometheus metric the core touches. All methods are
// nil-receiver safe so a hub running with metrics disabled pays zero
// instrumentation cost.
type Hub struct {
	UsersOnline     prometheus.Gauge
	BotsOnline      prometheus.Gauge
	ConnectionsTotal *prometheus.CounterVec // labels: result=[accepted,rejected]
	FramesTotal     *prometheus.CounterVec // labels: direction=[in,out]
	BytesTotal      *prometheus.CounterVec // labels: direction=[in,out]
	BytesSaved      prometheus.Counter     // ZPipe0 compression savings
	CommandsTotal   *prometheus.CounterVec // labels: command
	FloodActions    *prometheus.CounterVec // labels: kind, action
	TempBansTotal   *prometheus.CounterVec // labels: type=[password,reconnect,flood,clone]
	ClosesTotal     *prometheus.CounterVec // labels: reason
	SearchLatency   prometheus.Histogram
	SystemLoadLevel prometheus.Gauge
}

// New constructs and registers every metric against registerer (nil uses
// prometheus.DefaultRegisterer).
func New(registerer prometheus.Registerer) *Hub {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Hub{
		UsersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vhub_users_online", Help: "Current number of logged-in users.",
		}),
		BotsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vhub_bots_online", Help: "Current number of bot (connectionless) users.",
		}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_connections_total", Help: "Total accepted/rejected TCP connections.",
		}, []string{"result"}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_frames_total", Help: "Total protocol frames processed.",
		}, []string{"direction"}),
		BytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_bytes_total", Help: "Total bytes transferred.",
		}, []string{"direction"}),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vhub_zpipe_bytes_saved_total", Help: "Total bytes saved by ZPipe0 compression.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_commands_total", Help: "Total commands processed by kind.",
		}, []string{"command"}),
		FloodActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_flood_actions_total", Help: "Total flood-control actions taken.",
		}, []string{"kind", "action"}),
		TempBansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_temp_bans_total", Help: "Total temporary bans issued by type.",
		}, []string{"type"}),
		ClosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vhub_connection_closes_total", Help: "Total connections closed by reason.",
		}, []string{"reason"}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "vhub_search_fanout_seconds", Help: "Search fan-out duration.",
			Buckets: prometheus.DefBuckets,
		}),
		SystemLoadLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vhub_system_load_level", Help: "Current system load level (0=Normal .. 4=SystemDown).",
		}),
	}

	registerer.MustRegister(
		m.UsersOnline, m.BotsOnline, m.ConnectionsTotal, m.FramesTotal, m.BytesTotal,
		m.BytesSaved, m.CommandsTotal, m.FloodActions, m.TempBansTotal, m.ClosesTotal,
		m.SearchLatency, m.SystemLoadLevel,
	)
	return m
}

func (m *Hub) RecordConnection(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.ConnectionsTotal.WithLabelValues("accepted").Inc()
	} else {
		m.ConnectionsTotal.WithLabelValues("rejected").Inc()
	}
}

func (m *Hub) RecordFrame(direction string, bytes int) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(direction).Inc()
	m.BytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

func (m *Hub) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command).Inc()
}

func (m *Hub) RecordFloodAction(kind, action string) {
	if m == nil {
		return
	}
	m.FloodActions.WithLabelValues(kind, action).Inc()
}

func (m *Hub) RecordTempBan(banType string) {
	if m == nil {
		return
	}
	m.TempBansTotal.WithLabelValues(banType).Inc()
}

func (m *Hub) RecordClose(reason string) {
	if m == nil {
		return
	}
	m.ClosesTotal.WithLabelValues(reason).Inc()
}

func (m *Hub) SetSystemLoadLevel(level int) {
	if m == nil {
		return
	}
	m.SystemLoadLevel.Set(float64(level))
}

func (m *Hub) SetUsersOnline(n int) {
	if m == nil {
		return
	}
	m.UsersOnline.Set(float64(n))
}

func (m *Hub) SetBotsOnline(n int) {
	if m == nil {
		return
	}
	m.BotsOnline.Set(float64(n))
}
