package sender

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/pkg/errors"
)

// ErrorListener receives delivery and encoding failures that are otherwise swallowed.
type ErrorListener func(err error)

// Transport delivers encoded lines to a collector. Send must not block on the network
// for longer than a datagram write and must never surface errors to the caller.
type Transport interface {
	Send(payload []byte)
	Close() error
}

// UDPTransport writes one newline terminated line per datagram.
type UDPTransport struct {
	addr    string
	conn    net.PacketConn
	onError ErrorListener
}

// NewUDPTransport opens an unconnected UDP socket. The destination address is resolved
// on every send so DNS changes are picked up.
func NewUDPTransport(addr string, onError ErrorListener) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open udp socket")
	}

	return &UDPTransport{
		addr:    addr,
		conn:    conn,
		onError: onError,
	}, nil
}

func (t *UDPTransport) Send(payload []byte) {
	raddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		t.fail("resolve", err)
		return
	}

	datagram := make([]byte, 0, len(payload)+1)
	datagram = append(datagram, payload...)
	datagram = append(datagram, '\n')
	if _, err := t.conn.WriteTo(datagram, raddr); err != nil {
		t.fail("write", err)
	}
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func (t *UDPTransport) fail(op string, err error) {
	if t.onError != nil {
		t.onError(&TransportError{Transport: "udp", Op: op, Err: err})
	}
}

// HTTPTransport POSTs each line on a bounded worker pool so callers never wait on the request.
type HTTPTransport struct {
	url     string
	client  *http.Client
	pool    pond.Pool
	onError ErrorListener
}

// NewHTTPTransport creates a transport posting to url with at most workers requests in flight.
func NewHTTPTransport(url string, workers int, timeout time.Duration, onError ErrorListener) *HTTPTransport {
	if workers <= 0 {
		workers = DefaultHTTPWorkers
	}

	return &HTTPTransport{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		pool:    pond.NewPool(workers),
		onError: onError,
	}
}

// Send queues payload as the body of a POST. No newline is appended: the request
// boundary delimits the line.
func (t *HTTPTransport) Send(payload []byte) {
	if t.pool.Stopped() {
		t.fail("submit", pond.ErrPoolStopped)
		return
	}

	body := make([]byte, len(payload))
	copy(body, payload)

	t.pool.Submit(func() {
		t.post(body)
	})
}

func (t *HTTPTransport) post(body []byte) {
	req, err := http.NewRequest(http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		t.fail("request", err)
		return
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := t.client.Do(req)
	if err != nil {
		t.fail("post", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.fail("post", errors.Errorf("unexpected status %s", resp.Status))
	}
}

// Close waits for queued requests to finish.
func (t *HTTPTransport) Close() error {
	t.pool.StopAndWait()
	return nil
}

func (t *HTTPTransport) fail(op string, err error) {
	if t.onError != nil {
		t.onError(&TransportError{Transport: "http", Op: op, Err: err})
	}
}

// TCPTransport opens a connection per line, writes it newline terminated and closes it.
// Connections are made on a worker pool, as for HTTPTransport.
type TCPTransport struct {
	addr    string
	timeout time.Duration
	pool    pond.Pool
	onError ErrorListener
}

func NewTCPTransport(addr string, workers int, timeout time.Duration, onError ErrorListener) *TCPTransport {
	if workers <= 0 {
		workers = DefaultHTTPWorkers
	}

	return &TCPTransport{
		addr:    addr,
		timeout: timeout,
		pool:    pond.NewPool(workers),
		onError: onError,
	}
}

func (t *TCPTransport) Send(payload []byte) {
	if t.pool.Stopped() {
		t.fail("submit", pond.ErrPoolStopped)
		return
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	t.pool.Submit(func() {
		t.write(line)
	})
}

func (t *TCPTransport) write(line []byte) {
	conn, err := net.DialTimeout("tcp", t.addr, t.timeout)
	if err != nil {
		t.fail("connect", err)
		return
	}

	if _, err := conn.Write(line); err != nil {
		t.fail("write", err)
	}

	if err := conn.Close(); err != nil {
		t.fail("close", err)
	}
}

// Close waits for queued lines to be written.
func (t *TCPTransport) Close() error {
	t.pool.StopAndWait()
	return nil
}

func (t *TCPTransport) fail(op string, err error) {
	if t.onError != nil {
		t.onError(&TransportError{Transport: "tcp", Op: op, Err: err})
	}
}
