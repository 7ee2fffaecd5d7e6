package sender

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	sync.Mutex
	payloads []string
	closed   bool
}

func (r *recordingTransport) Send(payload []byte) {
	r.Lock()
	defer r.Unlock()
	r.payloads = append(r.payloads, string(payload))
}

func (r *recordingTransport) Close() error {
	r.Lock()
	defer r.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) lines() []string {
	r.Lock()
	defer r.Unlock()
	lines := make([]string, len(r.payloads))
	copy(lines, r.payloads)
	return lines
}

func newRecordingClient(config Config) (*Client, *recordingTransport) {
	transport := &recordingTransport{}
	return NewClient(config, transport), transport
}

func TestClient_Defaults(t *testing.T) {
	client, _ := newRecordingClient(Config{})
	assert.Equal(t, "localhost", client.Host())
	assert.Equal(t, 8094, client.Port())
	assert.Empty(t, client.Tags())

	client, _ = newRecordingClient(Config{Host: "telegraf", Port: 8186, Tags: Tags{"env": "prod"}})
	assert.Equal(t, "telegraf", client.Host())
	assert.Equal(t, 8186, client.Port())
	assert.Equal(t, Tags{"env": "prod"}, client.Tags())
	assert.Equal(t, "telegraf:8186", client.config.Endpoint())
}

func TestClient_Record(t *testing.T) {
	client, transport := newRecordingClient(Config{})

	client.Record("cpu", Int(50), Tags{"host": "server01"})

	assert.Equal(t, []string{"cpu,host=server01 value=50i"}, transport.lines())
}

func TestClient_MetricAt(t *testing.T) {
	client, transport := newRecordingClient(Config{})

	client.MetricAt("cpu", Fields{"idle": Float(0.5), "busy": Int(2)}, nil, time.Unix(0, 42))

	assert.Equal(t, []string{"cpu busy=2i,idle=0.5 42"}, transport.lines())
}

func TestClient_EmptyIsNoop(t *testing.T) {
	stats := NewStats("test")
	client, transport := newRecordingClient(Config{Stats: stats})

	client.Metric("cpu", nil, nil)
	client.Metric("cpu", Fields{}, nil)
	client.Metric("cpu", Fields{"value": {}}, nil)
	client.Record("cpu", Value{}, nil)
	client.Record("", Int(1), nil)

	assert.Empty(t, transport.lines())
	assert.Equal(t, 0.0, testutil.ToFloat64(stats.linesSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(stats.encodeErrors))
}

func TestClient_TagMerge(t *testing.T) {
	defaults := Tags{"env": "prod"}
	client, transport := newRecordingClient(Config{Tags: defaults})

	client.Record("req", Int(1), Tags{"env": "staging", "host": "a"})
	client.Record("req", Int(2), nil)

	assert.Equal(t, []string{
		"req,env=staging,host=a value=1i",
		"req,env=prod value=2i",
	}, transport.lines())

	// the client keeps its own copy of the default tags
	defaults["env"] = "changed"
	assert.Equal(t, Tags{"env": "prod"}, client.Tags())
}

func TestClient_Send(t *testing.T) {
	var reported []error
	client, transport := newRecordingClient(Config{
		ErrorListener: func(err error) {
			reported = append(reported, err)
		},
	})

	metric := NewSimpleMetric("metric_name")
	metric.SetTime(time.Unix(1, 0))
	metric.AddTag("tag1", "t1")
	metric.AddField("value1", 1)
	metric.AddField("bad", []string{"x"})
	client.Send(metric)

	require.Len(t, reported, 1)
	assert.Equal(t, ErrUnsupportedValue, errors.Cause(reported[0]))
	assert.Equal(t, []string{"metric_name,tag1=t1 value1=1i 1000000000"}, transport.lines())

	client.Send(nil)
	assert.Len(t, transport.lines(), 1)
}

func TestClient_Stats(t *testing.T) {
	stats := NewStats("test")
	client, _ := newRecordingClient(Config{Stats: stats})

	client.Record("a", Int(1), nil)
	client.Record("b", Int(1), nil)
	client.reportTransportError(&TransportError{Transport: "udp", Op: "write", Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(stats.linesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(stats.transportErrors))

	registry := prometheus.NewRegistry()
	require.NoError(t, stats.Register(registry))
	require.NoError(t, stats.Register(registry))
}

func TestClient_Close(t *testing.T) {
	client, transport := newRecordingClient(Config{})
	require.NoError(t, client.Close())
	assert.True(t, transport.closed)
}

func TestNew_UnknownTransport(t *testing.T) {
	_, err := New(Config{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}
