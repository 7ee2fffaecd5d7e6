package sender

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	protocol "github.com/influxdata/line-protocol"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHost        = "localhost"
	DefaultPort        = 8094
	DefaultPath        = "/write"
	DefaultHTTPWorkers = 8
	DefaultHTTPTimeout = 10 * time.Second

	TransportUDP  = "udp"
	TransportTCP  = "tcp"
	TransportHTTP = "http"
)

type Config struct {
	Host string
	Port int
	// Tags are added to every metric. Tags given at the call site win.
	Tags Tags

	// Transport selects the transport used by New: udp (default), tcp or http.
	Transport string
	// Path is the HTTP write path, /write by default.
	Path string
	// HTTPWorkers bounds the number of in-flight tcp or http sends.
	HTTPWorkers int
	HTTPTimeout time.Duration

	ErrorListener
	Logger *logrus.Entry
	Stats  *Stats
}

// Endpoint returns the host:port of the collector.
func (c Config) Endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Transport == "" {
		c.Transport = TransportUDP
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
	if c.HTTPWorkers <= 0 {
		c.HTTPWorkers = DefaultHTTPWorkers
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger().WithField("type", "telegraf-sender")
	}
	return c
}

// Client encodes metrics as line protocol and hands them to a Transport. None of its
// methods block on delivery or report delivery errors; those go to Config.ErrorListener.
type Client struct {
	config    Config
	log       *logrus.Entry
	transport Transport
}

// New creates a client using the transport named by config.Transport.
func New(config Config) (*Client, error) {
	switch strings.ToLower(config.Transport) {
	case "", TransportUDP:
		return NewUDPClient(config)
	case TransportTCP:
		return NewTCPClient(config)
	case TransportHTTP:
		return NewHTTPClient(config)
	default:
		return nil, errors.Errorf("unknown transport %q", config.Transport)
	}
}

// NewClient creates a client sending through the given transport.
func NewClient(config Config, transport Transport) *Client {
	c := newClient(config)
	c.transport = transport
	return c
}

// NewUDPClient creates a client sending one datagram per metric. Socket errors are dropped.
func NewUDPClient(config Config) (*Client, error) {
	c := newClient(config)
	transport, err := NewUDPTransport(c.config.Endpoint(), c.reportTransportError)
	if err != nil {
		return nil, err
	}
	c.transport = transport
	c.log.Debugf("sending metrics over udp to %s", c.config.Endpoint())
	return c, nil
}

// NewTCPClient creates a client opening a connection per metric, suitable for Telegraf's
// socket_listener input configured for tcp.
func NewTCPClient(config Config) (*Client, error) {
	c := newClient(config)
	c.transport = NewTCPTransport(c.config.Endpoint(), c.config.HTTPWorkers, c.config.HTTPTimeout, c.reportTransportError)
	c.log.Debugf("sending metrics over tcp to %s", c.config.Endpoint())
	return c, nil
}

// NewHTTPClient creates a client posting each metric to http://host:port/path in the background.
func NewHTTPClient(config Config) (*Client, error) {
	c := newClient(config)
	url := fmt.Sprintf("http://%s%s", c.config.Endpoint(), c.config.Path)
	c.transport = NewHTTPTransport(url, c.config.HTTPWorkers, c.config.HTTPTimeout, c.reportTransportError)
	c.log.Debugf("sending metrics over http to %s", url)
	return c, nil
}

func newClient(config Config) *Client {
	config = config.withDefaults()

	// copied so later changes to the caller's map are not seen
	tags := make(Tags, len(config.Tags))
	for k, v := range config.Tags {
		tags[k] = v
	}
	config.Tags = tags

	return &Client{
		config: config,
		log:    config.Logger,
	}
}

func (c *Client) Host() string {
	return c.config.Host
}

func (c *Client) Port() int {
	return c.config.Port
}

// Tags returns a copy of the default tags.
func (c *Client) Tags() Tags {
	return mergeTags(c.config.Tags, nil)
}

// Metric sends a measurement stamped by the collector on receipt.
// Calls with an empty name or no valid fields are ignored.
func (c *Client) Metric(name string, fields Fields, tags Tags) {
	c.MetricAt(name, fields, tags, time.Time{})
}

// MetricAt sends a measurement with an explicit timestamp. A zero timestamp is omitted.
func (c *Client) MetricAt(name string, fields Fields, tags Tags, timestamp time.Time) {
	if name == "" || !hasFields(fields) {
		return
	}

	line, err := Encode(Measurement{
		Name:      name,
		Fields:    fields,
		Tags:      mergeTags(c.config.Tags, tags),
		Timestamp: timestamp,
	})
	if err != nil {
		c.reportError(errors.Wrapf(err, "failed to encode %s", name))
		return
	}

	c.config.Stats.lineSent()
	c.transport.Send([]byte(line))
}

// Record sends a single value under the field key "value".
func (c *Client) Record(name string, value Value, tags Tags) {
	c.Metric(name, Fields{DefaultFieldKey: value}, tags)
}

// Send sends a protocol.Metric, such as a SimpleMetric. Fields whose values cannot be
// represented are dropped and reported to the ErrorListener.
func (c *Client) Send(m protocol.Metric) {
	if m == nil {
		return
	}

	measurement, err := FromMetric(m)
	if err != nil {
		c.reportError(errors.Wrapf(err, "failed to convert %s", m.Name()))
	}
	c.MetricAt(measurement.Name, measurement.Fields, measurement.Tags, measurement.Timestamp)
}

// Close releases the transport, waiting for queued sends where the transport queues them.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) reportTransportError(err error) {
	c.config.Stats.transportError()
	c.log.WithError(err).Debug("dropped metric")
	if c.config.ErrorListener != nil {
		c.config.ErrorListener(err)
	}
}

func (c *Client) reportError(err error) {
	c.config.Stats.encodeError()
	c.log.WithError(err).Debug("dropped metric")
	if c.config.ErrorListener != nil {
		c.config.ErrorListener(err)
	}
}
