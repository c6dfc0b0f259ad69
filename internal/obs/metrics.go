// Package obs provides the engine's metrics sink. Recording is
// fire-and-forget: implementations never block or return errors.
package obs

import (
	"github.com/adwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink records engine outcomes.
type Sink interface {
	ScheduleExecution(status models.ExecutionStatus)
	RuleExecution(status models.ExecutionStatus)
	AlertFired()
	BatchAborted()
}

// NopSink discards everything. Used by the CLI and in tests.
type NopSink struct{}

func (NopSink) ScheduleExecution(models.ExecutionStatus) {}
func (NopSink) RuleExecution(models.ExecutionStatus)     {}
func (NopSink) AlertFired()                              {}
func (NopSink) BatchAborted()                            {}

// PrometheusSink implements Sink on the Prometheus client library.
type PrometheusSink struct {
	scheduleExecutions *prometheus.CounterVec
	ruleExecutions     *prometheus.CounterVec
	alertsFired        prometheus.Counter
	batchesAborted     prometheus.Counter
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		scheduleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adwatch_schedule_executions_total",
			Help: "Schedule executions by outcome.",
		}, []string{"status"}),
		ruleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adwatch_rule_executions_total",
			Help: "Alert rule evaluation passes by outcome.",
		}, []string{"status"}),
		alertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adwatch_alerts_fired_total",
			Help: "Alert notifications created.",
		}),
		batchesAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adwatch_batches_aborted_total",
			Help: "Engine batches aborted because the store was unavailable.",
		}),
	}
	reg.MustRegister(s.scheduleExecutions, s.ruleExecutions, s.alertsFired, s.batchesAborted)
	return s
}

func (s *PrometheusSink) ScheduleExecution(status models.ExecutionStatus) {
	s.scheduleExecutions.WithLabelValues(string(status)).Inc()
}

func (s *PrometheusSink) RuleExecution(status models.ExecutionStatus) {
	s.ruleExecutions.WithLabelValues(string(status)).Inc()
}

func (s *PrometheusSink) AlertFired() {
	s.alertsFired.Inc()
}

func (s *PrometheusSink) BatchAborted() {
	s.batchesAborted.Inc()
}
