package main

import (
	"os"
	"os/exec"
	"time"

	"github.com/alecthomas/kong"
	sender "github.com/itzg/telegraf-sender"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Globals struct {
	Config    string            `help:"config file, overlaid by TELEGRAF_* environment variables" type:"path"`
	Host      string            `help:"collector host"`
	Port      int               `help:"collector port"`
	Transport string            `help:"udp, tcp or http"`
	Tag       map[string]string `short:"t" help:"tag added to every metric, as key=value"`
	LogLevel  string            `help:"log level" default:"info"`
}

func (g *Globals) client() (*sender.Client, error) {
	config, err := sender.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}

	if g.Host != "" {
		config.Host = g.Host
	}
	if g.Port != 0 {
		config.Port = g.Port
	}
	if g.Transport != "" {
		config.Transport = g.Transport
	}
	for k, v := range g.Tag {
		config.Tags[k] = v
	}

	config.ErrorListener = func(err error) {
		logrus.WithError(err).Warn("metric dropped")
	}

	return sender.New(config)
}

type metricCmd struct {
	Name      string            `arg:"" help:"measurement name"`
	Field     map[string]string `short:"f" required:"" help:"field as key=value, values use line protocol syntax: 1i, 1.5, true, \"text\""`
	Timestamp int64             `help:"timestamp in nanoseconds since the epoch"`
	Now       bool              `help:"stamp the metric with the current time"`
}

func (c *metricCmd) Run(client *sender.Client) error {
	fields := make(sender.Fields, len(c.Field))
	for k, raw := range c.Field {
		v, err := sender.ParseValue(raw)
		if err != nil {
			return errors.Wrapf(err, "field %s", k)
		}
		fields[k] = v
	}

	var ts time.Time
	switch {
	case c.Timestamp != 0:
		ts = time.Unix(0, c.Timestamp)
	case c.Now:
		ts = time.Now()
	}

	client.MetricAt(c.Name, fields, nil, ts)
	return nil
}

type timeCmd struct {
	Name         string   `arg:"" help:"measurement name"`
	Command      []string `arg:"" passthrough:"" help:"command to run"`
	Milliseconds bool     `short:"m" help:"report milliseconds instead of seconds"`
}

func (c *timeCmd) Run(client *sender.Client) error {
	var opts []sender.TimerOption
	if c.Milliseconds {
		opts = append(opts, sender.WithMilliseconds())
	}

	cmd := exec.Command(c.Command[0], c.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return client.Timer(c.Name, opts...).Wrap(cmd.Run)()
}

func main() {
	var shellcli struct {
		Globals
		Metric metricCmd `cmd:"" help:"send a single metric"`
		Time   timeCmd   `cmd:"" help:"run a command and send how long it took"`
	}

	ctx := kong.Parse(
		&shellcli,
		kong.Name("telegraf-send"),
		kong.Description("send line protocol metrics to telegraf"),
		kong.UsageOnError(),
	)

	level, err := logrus.ParseLevel(shellcli.LogLevel)
	ctx.FatalIfErrorf(err)
	logrus.SetLevel(level)

	client, err := shellcli.client()
	ctx.FatalIfErrorf(err)

	err = ctx.Run(client)
	if cerr := client.Close(); cerr != nil {
		logrus.WithError(cerr).Warn("failed to close client")
	}
	ctx.FatalIfErrorf(err)
}
