package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics counts what the tracking pipeline does. A nil *IngestMetrics
// is valid and records nothing, which keeps tests free of registry setup.
type IngestMetrics struct {
	eventsStored  *prom.CounterVec
	botsFiltered  prom.Counter
	blockedHits   prom.Counter
	tokenHits     prom.Counter
	tokenMisses   prom.Counter
	streamPending prom.Gauge
}

// NewIngestMetrics registers the pipeline collectors with reg.
func NewIngestMetrics(reg prom.Registerer) *IngestMetrics {
	factory := promauto.With(reg)
	return &IngestMetrics{
		eventsStored: factory.NewCounterVec(prom.CounterOpts{
			Name: "pageflow_events_stored_total",
			Help: "Hits written to the active sink, by event type.",
		}, []string{"event_type"}),
		botsFiltered: factory.NewCounter(prom.CounterOpts{
			Name: "pageflow_bots_filtered_total",
			Help: "Hits dropped by bot detection.",
		}),
		blockedHits: factory.NewCounter(prom.CounterOpts{
			Name: "pageflow_blocked_ips_total",
			Help: "Hits refused by the IP blocklist.",
		}),
		tokenHits: factory.NewCounter(prom.CounterOpts{
			Name: "pageflow_cache_token_hits_total",
			Help: "Requests that presented a valid cache token.",
		}),
		tokenMisses: factory.NewCounter(prom.CounterOpts{
			Name: "pageflow_cache_token_misses_total",
			Help: "Requests resolved without a usable cache token.",
		}),
		streamPending: factory.NewGauge(prom.GaugeOpts{
			Name: "pageflow_stream_pending_hits",
			Help: "Hits waiting in JetStream for the archive consumer.",
		}),
	}
}

func (m *IngestMetrics) EventStored(eventType string) {
	if m == nil {
		return
	}
	m.eventsStored.WithLabelValues(eventType).Inc()
}

func (m *IngestMetrics) BotFiltered() {
	if m == nil {
		return
	}
	m.botsFiltered.Inc()
}

func (m *IngestMetrics) BlockedHit() {
	if m == nil {
		return
	}
	m.blockedHits.Inc()
}

func (m *IngestMetrics) TokenHit() {
	if m == nil {
		return
	}
	m.tokenHits.Inc()
}

func (m *IngestMetrics) TokenMiss() {
	if m == nil {
		return
	}
	m.tokenMisses.Inc()
}

func (m *IngestMetrics) SetStreamPending(n float64) {
	if m == nil {
		return
	}
	m.streamPending.Set(n)
}
