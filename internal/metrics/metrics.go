package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Aggregate gauges recomputed by the sweeper stats loop.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_active_rooms",
		Help: "Rooms currently held in the in-memory store",
	})

	ConnectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connected_users",
		Help: "Users with at least one live connection",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections",
		Help: "Live websocket connections across all users",
	})

	PresenceByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collab_presence_records",
		Help: "Presence records per status",
	}, []string{"status"})

	// Throughput counters.
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_messages_posted_total",
		Help: "Messages appended to room history",
	}, []string{"kind"})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_events_broadcast_total",
		Help: "Per-recipient broadcast deliveries attempted",
	})

	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_broadcast_failures_total",
		Help: "Connections dropped during broadcast fan-out",
	})

	PollsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_polls_created_total",
		Help: "Polls created",
	})

	VotesCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_votes_cast_total",
		Help: "Poll votes accepted",
	})

	BreakoutsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_breakouts_created_total",
		Help: "Breakout rooms spawned",
	})

	RoomsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_rooms_swept_total",
		Help: "Rooms removed by the lifecycle sweeper",
	})
)
