package sender

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEndpoint collects whatever is written to it over tcp or udp.
type MockEndpoint struct {
	listener net.Listener
	packets  net.PacketConn

	mu       sync.Mutex
	contents []string
}

func NewMockTCPEndpoint() (*MockEndpoint, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return nil, err
	}
	e := &MockEndpoint{listener: listener}
	go e.accept()
	return e, nil
}

func NewMockUDPEndpoint() (*MockEndpoint, error) {
	packets, err := net.ListenPacket("udp", "127.0.0.1:")
	if err != nil {
		return nil, err
	}
	e := &MockEndpoint{packets: packets}
	go e.read()
	return e, nil
}

func (e *MockEndpoint) Addr() net.Addr {
	if e.listener != nil {
		return e.listener.Addr()
	}
	return e.packets.LocalAddr()
}

// Config returns a client config pointing at the endpoint.
func (e *MockEndpoint) Config() Config {
	host, port, _ := net.SplitHostPort(e.Addr().String())
	p, _ := strconv.Atoi(port)
	return Config{Host: host, Port: p}
}

func (e *MockEndpoint) Close() {
	if e.listener != nil {
		e.listener.Close()
	} else {
		e.packets.Close()
	}
}

func (e *MockEndpoint) accept() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			return
		}

		var buffer bytes.Buffer
		if _, err = io.Copy(&buffer, conn); err == nil {
			e.add(buffer.String())
		}
		conn.Close()
	}
}

func (e *MockEndpoint) read() {
	buf := make([]byte, 65535)
	for {
		n, _, err := e.packets.ReadFrom(buf)
		if err != nil {
			return
		}
		e.add(string(buf[:n]))
	}
}

func (e *MockEndpoint) add(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contents = append(e.contents, content)
}

func (e *MockEndpoint) HasContent() bool {
	return len(e.Content()) > 0
}

func (e *MockEndpoint) Content() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	contents := make([]string, len(e.contents))
	copy(contents, e.contents)
	return contents
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) listen(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make([]error, len(r.errs))
	copy(errs, r.errs)
	return errs
}

func TestUDPClient(t *testing.T) {
	endpoint, err := NewMockUDPEndpoint()
	require.NoError(t, err)
	defer endpoint.Close()

	config := endpoint.Config()
	config.Tags = Tags{"env": "prod"}
	client, err := NewUDPClient(config)
	require.NoError(t, err)
	defer client.Close()

	client.Record("cpu", Int(50), Tags{"host": "server01"})

	assert.Eventually(t, endpoint.HasContent, time.Second, 5*time.Millisecond)
	assert.Equal(t, "cpu,env=prod,host=server01 value=50i\n", endpoint.Content()[0])
}

func TestUDPClient_SwallowsErrors(t *testing.T) {
	recorder := &errorRecorder{}
	client, err := NewUDPClient(Config{Host: "127.0.0.1", Port: 99999, ErrorListener: recorder.listen})
	require.NoError(t, err)
	defer client.Close()

	client.Record("cpu", Int(1), nil)

	errs := recorder.all()
	require.Len(t, errs, 1)
	transportErr, ok := errs[0].(*TransportError)
	require.True(t, ok)
	assert.Equal(t, "udp", transportErr.Transport)
	assert.Equal(t, "resolve", transportErr.Op)
}

func TestUDPClient_SendAfterClose(t *testing.T) {
	recorder := &errorRecorder{}
	client, err := NewUDPClient(Config{Host: "127.0.0.1", ErrorListener: recorder.listen})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.NotPanics(t, func() {
		client.Record("cpu", Int(1), nil)
	})
	assert.Len(t, recorder.all(), 1)
}

func TestHTTPClient(t *testing.T) {
	type request struct {
		method, path, body string
	}
	requests := make(chan request, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- request{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	config := (&MockEndpoint{listener: server.Listener}).Config()
	config.Transport = TransportHTTP
	recorder := &errorRecorder{}
	config.ErrorListener = recorder.listen
	client, err := New(config)
	require.NoError(t, err)

	client.Record("cpu", Float(0.5), nil)

	select {
	case req := <-requests:
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/write", req.path)
		assert.Equal(t, "cpu value=0.5", req.body)
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}

	require.NoError(t, client.Close())
	assert.Empty(t, recorder.all())
}

func TestHTTPClient_ReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	recorder := &errorRecorder{}
	config := (&MockEndpoint{listener: server.Listener}).Config()
	config.Path = "custom"
	config.ErrorListener = recorder.listen
	client, err := NewHTTPClient(config)
	require.NoError(t, err)

	client.Record("cpu", Int(1), nil)
	require.NoError(t, client.Close())

	errs := recorder.all()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "400")
}

func TestTCPClient(t *testing.T) {
	endpoint, err := NewMockTCPEndpoint()
	require.NoError(t, err)
	defer endpoint.Close()

	config := endpoint.Config()
	config.Transport = TransportTCP
	client, err := New(config)
	require.NoError(t, err)

	metric := NewSimpleMetric("metric_name")
	metric.SetTime(time.Unix(1, 0))
	metric.AddTag("tag1", "t1")
	metric.AddField("value1", 1)
	client.Send(metric)

	require.NoError(t, client.Close())

	assert.Eventually(t, endpoint.HasContent, time.Second, 5*time.Millisecond)
	assert.Equal(t, "metric_name,tag1=t1 value1=1i 1000000000\n", endpoint.Content()[0])
}

func TestTCPClient_ConnectFailure(t *testing.T) {
	endpoint, err := NewMockTCPEndpoint()
	require.NoError(t, err)
	config := endpoint.Config()
	endpoint.Close()

	recorder := &errorRecorder{}
	config.ErrorListener = recorder.listen
	config.HTTPTimeout = time.Second
	client, err := NewTCPClient(config)
	require.NoError(t, err)

	client.Record("cpu", Int(1), nil)
	require.NoError(t, client.Close())

	errs := recorder.all()
	require.Len(t, errs, 1)
	var transportErr *TransportError
	require.True(t, errors.As(errs[0], &transportErr))
	assert.Equal(t, "connect", transportErr.Op)
}

func TestPooledTransports_SendAfterClose(t *testing.T) {
	for _, transport := range []string{TransportHTTP, TransportTCP} {
		recorder := &errorRecorder{}
		stats := NewStats("test")
		client, err := New(Config{
			Host:          "127.0.0.1",
			Transport:     transport,
			ErrorListener: recorder.listen,
			Stats:         stats,
		})
		require.NoError(t, err)
		require.NoError(t, client.Close())

		assert.NotPanics(t, func() {
			client.Record("cpu", Int(1), nil)
		})

		errs := recorder.all()
		require.Len(t, errs, 1, transport)
		var transportErr *TransportError
		require.True(t, errors.As(errs[0], &transportErr))
		assert.Equal(t, transport, transportErr.Transport)
		assert.Equal(t, "submit", transportErr.Op)
		assert.Equal(t, 1.0, testutil.ToFloat64(stats.transportErrors), transport)
	}
}
