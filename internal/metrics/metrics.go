// Package metrics defines the Prometheus instrumentation exposed by a
// running Link: packet counters broken down by direction and type, the
// outstanding ack window, and handshake/auth outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSent counts packets handed to the socket, by packet type.
	// Provides metric: aether_packets_sent_total
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_packets_sent_total",
		Help: "Packets written to the socket, by packet type.",
	}, []string{"link_id", "type"})

	// PacketsReceived counts packets accepted by the receive loop after
	// parsing, by packet type.
	// Provides metric: aether_packets_received_total
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_packets_received_total",
		Help: "Packets accepted by the receive loop, by packet type.",
	}, []string{"link_id", "type"})

	// PacketsDropped counts packets discarded on the receive path:
	// malformed, duplicate, or failing decryption.
	// Provides metric: aether_packets_dropped_total
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_packets_dropped_total",
		Help: "Packets discarded by the receive loop, by reason.",
	}, []string{"link_id", "reason"})

	// PacketsRetransmitted counts packets re-sent by the send loop
	// because the peer had not acknowledged them within a retry window.
	// Provides metric: aether_packets_retransmitted_total
	PacketsRetransmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_packets_retransmitted_total",
		Help: "Packets re-sent after a retry window expired.",
	}, []string{"link_id"})

	// WindowOutstanding tracks the number of in-flight unacknowledged
	// packets for a Link's send loop.
	// Provides metric: aether_window_outstanding
	WindowOutstanding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aether_window_outstanding",
		Help: "In-flight unacknowledged packets currently held in the send window.",
	}, []string{"link_id"})

	// HandshakeOutcomes counts completed handshake attempts by outcome:
	// established or timeout.
	// Provides metric: aether_handshake_outcomes_total
	HandshakeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_handshake_outcomes_total",
		Help: "Handshake attempts, by outcome.",
	}, []string{"outcome"})

	// AuthOutcomes counts completed authentication attempts by outcome:
	// valid, invalid, or unreachable.
	// Provides metric: aether_auth_outcomes_total
	AuthOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aether_auth_outcomes_total",
		Help: "Authentication attempts, by outcome.",
	}, []string{"outcome"})

	// LinksActive tracks the number of Links currently running.
	// Provides metric: aether_links_active
	LinksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aether_links_active",
		Help: "Number of Links currently started and not yet stopped.",
	})
)
