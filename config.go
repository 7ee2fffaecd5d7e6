package sender

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "TELEGRAF"

// LoadConfig reads client configuration from an optional config file (any format viper
// understands) overlaid with TELEGRAF_* environment variables:
//
//	TELEGRAF_HOST, TELEGRAF_PORT, TELEGRAF_TRANSPORT, TELEGRAF_PATH,
//	TELEGRAF_TAGS (k1=v1,k2=v2), TELEGRAF_HTTP_WORKERS, TELEGRAF_HTTP_TIMEOUT
//
// Tag keys read from a config file are lower-cased by viper.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("transport", TransportUDP)
	v.SetDefault("path", DefaultPath)
	v.SetDefault("http_workers", DefaultHTTPWorkers)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("tags", "")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	tags, err := configTags(v.Get("tags"))
	if err != nil {
		return Config{}, err
	}

	config := Config{
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		Tags:        tags,
		Transport:   strings.ToLower(v.GetString("transport")),
		Path:        v.GetString("path"),
		HTTPWorkers: v.GetInt("http_workers"),
		HTTPTimeout: v.GetDuration("http_timeout"),
	}

	switch config.Transport {
	case TransportUDP, TransportTCP, TransportHTTP:
	default:
		return Config{}, errors.Errorf("unknown transport %q", config.Transport)
	}

	return config, nil
}

func configTags(raw interface{}) (Tags, error) {
	switch t := raw.(type) {
	case nil:
		return Tags{}, nil
	case string:
		return ParseTags(t)
	case map[string]interface{}:
		tags := make(Tags, len(t))
		for k, v := range t {
			tags[k] = fmt.Sprint(v)
		}
		return tags, nil
	case map[interface{}]interface{}:
		tags := make(Tags, len(t))
		for k, v := range t {
			tags[fmt.Sprint(k)] = fmt.Sprint(v)
		}
		return tags, nil
	case map[string]string:
		return Tags(t), nil
	default:
		return nil, errors.Errorf("tags must be a map or k=v list, got %T", raw)
	}
}

// ParseTags parses a comma separated list of key=value pairs.
func ParseTags(s string) (Tags, error) {
	tags := Tags{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, errors.Errorf("invalid tag %q, expected key=value", pair)
		}
		tags[kv[0]] = kv[1]
	}
	return tags, nil
}
