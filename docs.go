/*

Package sender provides a client that sends Influx line protocol metrics to Telegraf over UDP,
TCP or HTTP. Sends never block the caller on the network and never report errors back to it:
failures are dropped, optionally passed to an ErrorListener.

Timers measure how long a function, a goroutine or a block of code takes and report the
duration as a metric tagged with its units.

Example

The following sends a metric to the telegraf socket_listener input plugin listening for UDP on
port 8094:

	client, err := sender.NewUDPClient(sender.Config{Tags: sender.Tags{"env": "prod"}})

	client.Record("cpu", sender.Int(50), sender.Tags{"host": "server01"})
	// cpu,env=prod,host=server01 value=50i

	client.Metric("disk", sender.Fields{
		"used": sender.Float(0.42),
		"mount": sender.String("/var"),
	}, nil)

Timing a block:

	t := client.Timer("db.query", sender.WithMilliseconds())
	if err := t.Start(); err != nil {
		return err
	}
	defer t.Stop()

Timing a function:

	query := client.Timer("").Wrap(runQuery)
	err := query()

*/
package sender
