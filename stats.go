package sender

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts what a Client did with the metrics it was given. A nil *Stats is valid
// and counts nothing.
type Stats struct {
	linesSent       prometheus.Counter
	encodeErrors    prometheus.Counter
	transportErrors prometheus.Counter
}

// NewStats creates counters under the given prometheus namespace.
func NewStats(namespace string) *Stats {
	return &Stats{
		linesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegraf_sender",
			Name:      "lines_sent_total",
			Help:      "Number of encoded lines handed to the transport.",
		}),
		encodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegraf_sender",
			Name:      "encode_errors_total",
			Help:      "Number of metrics or fields dropped because they could not be encoded.",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegraf_sender",
			Name:      "transport_errors_total",
			Help:      "Number of lines the transport failed to deliver.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	s.linesSent.Describe(ch)
	s.encodeErrors.Describe(ch)
	s.transportErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	s.linesSent.Collect(ch)
	s.encodeErrors.Collect(ch)
	s.transportErrors.Collect(ch)
}

// Register registers the counters with r. Registering the same Stats twice is not an error.
func (s *Stats) Register(r prometheus.Registerer) error {
	if err := r.Register(s); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return errors.Wrap(err, "failed to register telegraf sender stats")
	}
	return nil
}

func (s *Stats) lineSent() {
	if s != nil {
		s.linesSent.Inc()
	}
}

func (s *Stats) encodeError() {
	if s != nil {
		s.encodeErrors.Inc()
	}
}

func (s *Stats) transportError() {
	if s != nil {
		s.transportErrors.Inc()
	}
}
