package sender

import (
	"time"

	protocol "github.com/influxdata/line-protocol"
	"github.com/pkg/errors"
)

// SimpleMetric is a minimal protocol.Metric that can be handed to Client.Send.
type SimpleMetric struct {
	name      string
	tags      []*protocol.Tag
	fields    []*protocol.Field
	timestamp time.Time
}

func NewSimpleMetric(name string) *SimpleMetric {
	return &SimpleMetric{name: name}
}

func (m *SimpleMetric) SetTime(t time.Time) {
	m.timestamp = t
}

// Time returns the zero time when no timestamp was set, leaving the collector to assign one.
func (m *SimpleMetric) Time() time.Time {
	return m.timestamp
}

func (m *SimpleMetric) Name() string {
	return m.name
}

func (m *SimpleMetric) TagList() []*protocol.Tag {
	return m.tags
}

func (m *SimpleMetric) FieldList() []*protocol.Field {
	return m.fields
}

func (m *SimpleMetric) AddTag(key, value string) {
	m.tags = append(m.tags, &protocol.Tag{
		Key:   key,
		Value: value,
	})
}

func (m *SimpleMetric) AddField(key string, value interface{}) {
	m.fields = append(m.fields, &protocol.Field{
		Key:   key,
		Value: value,
	})
}

// FromMetric converts a protocol.Metric into a Measurement. Fields whose values cannot be
// represented are left out and reported through the returned error, which is nil when every
// field converted.
func FromMetric(m protocol.Metric) (Measurement, error) {
	measurement := Measurement{
		Name:      m.Name(),
		Fields:    make(Fields, len(m.FieldList())),
		Tags:      make(Tags, len(m.TagList())),
		Timestamp: m.Time(),
	}

	for _, tag := range m.TagList() {
		measurement.Tags[tag.Key] = tag.Value
	}

	var err error
	for _, field := range m.FieldList() {
		v, valueErr := ValueOf(field.Value)
		if valueErr != nil {
			if err == nil {
				err = errors.Wrapf(valueErr, "field %q", field.Key)
			}
			continue
		}
		measurement.Fields[field.Key] = v
	}

	return measurement, err
}
