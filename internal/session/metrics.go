package session

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_ws_rooms",
			Help: "Current number of active rooms.",
		},
	)
	wsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_ws_events_total",
			Help: "Total inbound websocket events by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsEvents)
}

func incConnections() { wsConnections.Inc() }

func decConnections() { wsConnections.Dec() }

func setRooms(count int) { wsRooms.Set(float64(count)) }

func countEvent(eventType string) { wsEvents.WithLabelValues(eventType).Inc() }
