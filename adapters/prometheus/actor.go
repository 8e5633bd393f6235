package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luckysori/xtra/core/actor"
	"github.com/luckysori/xtra/core/metrics"
)

// actorMetrics implements actor.ActorMetrics using Prometheus.
//
// message_type is the envelope's label: the package-qualified message type
// name unless the message overrides it with MsgType(). actor_id is
// Options.ID, so gauges of many short-lived actors with generated IDs grow
// the series count.
type actorMetrics struct {
	// one observation per envelope, from pop to the end of Dispatch (and of
	// the inline task in sequential async mode)
	messageDuration *prometheus.HistogramVec
	// success=false when the handler or its inline task panicked
	messagesTotal *prometheus.CounterVec
	panicTotal    *prometheus.CounterVec
	// envelopes still queued when the loop stopped; requests among them
	// resolved with ErrDisconnected
	droppedTotal *prometheus.CounterVec
	// sends refused because the address was released or the loop was gone
	rejectedTotal *prometheus.CounterVec

	mailboxDepth *prometheus.GaugeVec

	// background tasks: concurrent async handlers and Context.Schedule
	schedulerInflight     *prometheus.GaugeVec
	schedulerTaskDuration prometheus.Histogram
	schedulerTasksTotal   *prometheus.CounterVec
}

// NewActorMetrics creates the actor metrics and registers them with reg. One
// instance is meant to be shared by all actors of a process; registering a
// second one with the same reg panics.
func NewActorMetrics(reg prometheus.Registerer) actor.ActorMetrics {
	m := &actorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xtra_actor_message_duration_seconds",
			Help:    "Time from popping an envelope to the end of its dispatch, in seconds",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xtra_actor_messages_total",
			Help: "Envelopes dispatched, by whether the handler returned without panicking",
		}, []string{"message_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xtra_actor_panics_total",
			Help: "Handler and async task panics contained by the loop",
		}, []string{"message_type"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xtra_actor_messages_dropped_total",
			Help: "Queued envelopes discarded undelivered when the loop stopped",
		}, []string{"message_type"}),

		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xtra_actor_sends_rejected_total",
			Help: "Sends that failed with ErrDisconnected before reaching the mailbox",
		}, []string{"message_type"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xtra_actor_mailbox_depth",
			Help: "Envelopes waiting in the mailbox after the last dispatch",
		}, []string{"actor_id"}),

		schedulerInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xtra_actor_scheduler_inflight",
			Help: "Background tasks currently running on the actor scheduler",
		}, []string{"actor_id"}),

		schedulerTaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xtra_actor_scheduler_task_duration_seconds",
			Help:    "Run time of background tasks, in seconds",
			Buckets: defaultBuckets,
		}),

		schedulerTasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xtra_actor_scheduler_tasks_total",
			Help: "Background tasks finished, by whether they completed without panicking",
		}, []string{"success"}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.panicTotal,
		m.droppedTotal,
		m.rejectedTotal,
		m.mailboxDepth,
		m.schedulerInflight,
		m.schedulerTaskDuration,
		m.schedulerTasksTotal,
	)

	return m
}

func (m *actorMetrics) MessageDuration(msgType string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(msgType))
}

func (m *actorMetrics) MessageProcessed(msgType string, success bool) {
	m.messagesTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *actorMetrics) MessagePanic(msgType string) {
	m.panicTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) MessageDropped(msgType string) {
	m.droppedTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) SendRejected(msgType string) {
	m.rejectedTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

func (m *actorMetrics) SchedulerInflight(actorID string, count int) {
	m.schedulerInflight.WithLabelValues(actorID).Set(float64(count))
}

func (m *actorMetrics) SchedulerTaskDuration() metrics.Timer {
	return newTimer(m.schedulerTaskDuration)
}

func (m *actorMetrics) SchedulerTaskCompleted(success bool) {
	m.schedulerTasksTotal.WithLabelValues(boolToStr(success)).Inc()
}

var _ actor.ActorMetrics = (*actorMetrics)(nil)
