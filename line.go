package sender

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// names, tag keys, tag values and field keys share the same escaping
	keyEscaper = strings.NewReplacer(
		"\t", `\t`, "\n", `\n`, "\f", `\f`, "\r", `\r`,
		`,`, `\,`, ` `, `\ `, `=`, `\=`,
	)

	stringFieldEscaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	stringFieldUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// Measurement is a single line protocol point.
type Measurement struct {
	Name   string
	Fields Fields
	Tags   Tags
	// Timestamp is optional. When zero, the collector assigns the time of receipt.
	Timestamp time.Time
}

// Encode renders m as a single line of Influx line protocol, without a trailing newline.
// Tag and field keys are written in sorted order. Tags with an empty key or value are
// omitted, as are trailing backslashes in names, keys and tag values. Control characters
// are escaped so the line never spans more than one line. Fields holding an invalid Value,
// including non-finite floats, are skipped.
func Encode(m Measurement) (string, error) {
	name := escapeKey(m.Name)
	if name == "" {
		return "", ErrInvalidMetric
	}

	fieldKeys := make([]string, 0, len(m.Fields))
	for k, v := range m.Fields {
		if v.IsValid() && escapeKey(k) != "" {
			fieldKeys = append(fieldKeys, k)
		}
	}
	if len(fieldKeys) == 0 {
		return "", ErrNoFields
	}
	sort.Strings(fieldKeys)

	tagKeys := make([]string, 0, len(m.Tags))
	for k, v := range m.Tags {
		// empty tag keys and values are not valid line protocol
		if escapeKey(k) != "" && escapeKey(v) != "" {
			tagKeys = append(tagKeys, k)
		}
	}
	sort.Strings(tagKeys)

	buf := make([]byte, 0, 64)
	buf = append(buf, name...)

	for _, k := range tagKeys {
		buf = append(buf, ',')
		buf = append(buf, escapeKey(k)...)
		buf = append(buf, '=')
		buf = append(buf, escapeKey(m.Tags[k])...)
	}

	buf = append(buf, ' ')
	for i, k := range fieldKeys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, escapeKey(k)...)
		buf = append(buf, '=')
		buf = m.Fields[k].appendTo(buf)
	}

	if !m.Timestamp.IsZero() {
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, m.Timestamp.UnixNano(), 10)
	}

	return string(buf), nil
}

// escapeKey escapes a name, tag key, tag value or field key. A trailing backslash would
// escape the separator that follows it, so trailing backslashes are dropped.
func escapeKey(s string) string {
	return keyEscaper.Replace(strings.TrimRight(s, `\`))
}

// hasFields reports whether fields holds at least one encodable value.
func hasFields(fields Fields) bool {
	for _, v := range fields {
		if v.IsValid() {
			return true
		}
	}
	return false
}

// mergeTags returns a new map holding defaults overlaid with tags. Keys in tags win.
func mergeTags(defaults, tags Tags) Tags {
	merged := make(Tags, len(defaults)+len(tags))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}
