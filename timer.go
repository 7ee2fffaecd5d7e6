package sender

import (
	"context"
	"math"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type timerState int

const (
	timerIdle timerState = iota
	timerArmed
	timerReported
)

// TimerOption configures a Timer.
type TimerOption func(t *Timer)

// WithTimerTags adds tags to every timing the Timer reports.
func WithTimerTags(tags Tags) TimerOption {
	return func(t *Timer) {
		for k, v := range tags {
			t.tags[k] = v
		}
	}
}

// WithMilliseconds reports integer milliseconds tagged units=ms instead of
// fractional seconds tagged units=s.
func WithMilliseconds() TimerOption {
	return func(t *Timer) {
		t.useMilliseconds = true
	}
}

// Timer measures wall-clock time around a unit of work and reports it through a Client.
//
// A Timer is used either as a function wrapper (Wrap, WrapAsync), reporting once per call,
// or as a scoped block with Start and Stop, which reports once and cannot be restarted.
type Timer struct {
	client          *Client
	tags            Tags
	useMilliseconds bool

	stateMu sync.Mutex
	name    string
	state   timerState
	start   time.Time
}

// Timer returns a new Timer reporting to c. The name may be empty when the timer is used
// to wrap a function, in which case the function's name is used.
func (c *Client) Timer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		client: c,
		name:   name,
		tags:   make(Tags),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the measurement name the timer reports under.
func (t *Timer) Name() string {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.name
}

// Wrap returns a function that calls fn and reports how long it took, whether fn
// returns or panics.
func (t *Timer) Wrap(fn func() error) func() error {
	t.nameFrom(fn)

	return func() error {
		start := time.Now()
		defer t.report(start)
		return fn()
	}
}

// WrapAsync returns a function that runs fn on its own goroutine. The timing is reported
// when fn finishes, before its result is delivered on the returned channel. A panic in fn
// is recovered and delivered as an error.
func (t *Timer) WrapAsync(fn func(ctx context.Context) error) func(ctx context.Context) <-chan error {
	t.nameFrom(fn)

	return func(ctx context.Context) <-chan error {
		start := time.Now()
		done := make(chan error, 1)

		go func() {
			var err error
			defer close(done)
			defer func() {
				// the goroutine belongs to us, so a panic in fn must not take down the caller
				if r := recover(); r != nil {
					err = errors.Errorf("panic: %v", r)
				}
				t.report(start)
				done <- err
			}()

			err = fn(ctx)
		}()

		return done
	}
}

// Start begins timing a block. Use with a deferred Stop:
//
//	t := client.Timer("db.query")
//	if err := t.Start(); err != nil {
//		return err
//	}
//	defer t.Stop()
func (t *Timer) Start() error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if t.name == "" {
		return ErrMissingMetricName
	}
	if t.state != timerIdle {
		return ErrTimerReused
	}

	t.state = timerArmed
	t.start = time.Now()
	return nil
}

// Stop reports the time since Start. Only the first Stop after a successful Start reports.
func (t *Timer) Stop() {
	t.stateMu.Lock()
	if t.state != timerArmed {
		t.stateMu.Unlock()
		return
	}
	t.state = timerReported
	start := t.start
	t.stateMu.Unlock()

	t.report(start)
}

func (t *Timer) nameFrom(fn interface{}) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if t.name != "" {
		return
	}
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		t.name = f.Name()
	}
}

func (t *Timer) report(start time.Time) {
	elapsed := time.Since(start)

	tags := make(Tags, len(t.tags)+1)
	for k, v := range t.tags {
		tags[k] = v
	}

	var value Value
	if t.useMilliseconds {
		value = Int(int64(math.Round(float64(elapsed) / float64(time.Millisecond))))
		tags["units"] = "ms"
	} else {
		value = Float(elapsed.Seconds())
		tags["units"] = "s"
	}

	t.client.Record(t.Name(), value, tags)
}
