package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

// Transition outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// TransitionMetrics counts lifecycle transitions per state machine.
type TransitionMetrics struct {
	transitions *prometheus.CounterVec
}

// NewTransitionMetrics registers lifecycle_transitions_total on reg.
// A collector already registered under the same name is reused.
func NewTransitionMetrics(reg prometheus.Registerer) (*TransitionMetrics, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "market",
		Name:      "lifecycle_transitions_total",
		Help:      "Lifecycle transitions by state machine, transition and outcome.",
	}, []string{"machine", "transition", "outcome"})

	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}

	return &TransitionMetrics{transitions: counter}, nil
}

// RecordTransition increments the counter for one transition outcome.
func (m *TransitionMetrics) RecordTransition(machine, transition, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(machine, transition, outcome).Inc()
}

// NopRecorder discards transition outcomes.
type NopRecorder struct{}

// RecordTransition implements port.TransitionRecorder.
func (NopRecorder) RecordTransition(string, string, string) {}

var (
	_ port.TransitionRecorder = (*TransitionMetrics)(nil)
	_ port.TransitionRecorder = NopRecorder{}
)
