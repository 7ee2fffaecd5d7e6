package sender

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidMetric is returned by Encode when the measurement has no name.
	ErrInvalidMetric = errors.New("measurement name is required")

	// ErrNoFields is returned by Encode when no encodable field remains.
	ErrNoFields = errors.New("measurement has no fields")

	// ErrMissingMetricName is returned by Timer.Start when the timer was created without a name.
	ErrMissingMetricName = errors.New("no metric name specified")

	// ErrTimerReused is returned by Timer.Start when the timer has already been started.
	ErrTimerReused = errors.New("timer has already been started")

	// ErrUnsupportedValue is returned by ValueOf for types that have no line protocol representation.
	ErrUnsupportedValue = errors.New("unsupported field value")
)

// TransportError describes a failed delivery. It is only ever handed to an ErrorListener,
// Client methods never return it.
type TransportError struct {
	Transport string
	Op        string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *TransportError) Cause() error {
	return e.Err
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
