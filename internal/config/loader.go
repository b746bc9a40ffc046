package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every configuration variable.
	EnvPrefix = "RIDEDECK_"

	// FileEnv names the variable holding an optional YAML config path.
	FileEnv = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering, lowest precedence first:
//  1. defaults (New)
//  2. the YAML file named by RIDEDECK_CONFIG, if set
//  3. RIDEDECK_ environment variables
//
// Nested keys use a double underscore: RIDEDECK_SCHEDULE__TTL=3h sets
// schedule.ttl and RIDEDECK_GARMIN__OAUTH__CLIENT_ID sets garmin.oauth.client_id.
// List values are comma separated: RIDEDECK_SCHEDULE__TIMEZONES=UTC,Europe/London.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == FileEnv {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf(cfg)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	for i, tz := range cfg.Schedule.Timezones {
		cfg.Schedule.Timezones[i] = strings.TrimSpace(tz)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshalConf(cfg *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
			ZeroFields:       true,
			TagName:          "koanf",
		},
	}
}
