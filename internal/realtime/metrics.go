package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_chat_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_chat_ws_channels",
			Help: "Current number of subscribed realtime channels.",
		},
	)
	wsFramesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_chat_ws_frames_delivered_total",
			Help: "Total realtime frames delivered to subscribers.",
		},
	)
	eventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_chat_events_published_total",
			Help: "Total events published to the realtime bus.",
		},
	)
	publishErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_chat_publish_errors_total",
			Help: "Total realtime publish failures, logged and swallowed.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsChannels, wsFramesDelivered, eventsPublished, publishErrors)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsChannels.Set(float64(count))
}

func addDelivered(count int) {
	wsFramesDelivered.Add(float64(count))
}

func addPublished(count int) {
	eventsPublished.Add(float64(count))
}

func incPublishErrors() {
	publishErrors.Inc()
}
