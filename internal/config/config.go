package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/alertgate/gateway/internal/imagepipeline"
	"github.com/alertgate/gateway/internal/logging"
	"github.com/alertgate/gateway/internal/models"
	"github.com/alertgate/gateway/internal/router"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DedupConfig configures the build-system dedup cache (jenkins_dedup in
// config.yaml).
type DedupConfig struct {
	Enabled         bool `yaml:"enabled"`
	TTLSeconds      int  `yaml:"ttl_seconds"`
	ClearOnResolved bool `yaml:"clear_on_resolved"`
}

// Config is the fully typed, validated representation of config.yaml.
// Every nested type here is tagged with `yaml`, not `mapstructure`;
// Load tells viper's decoder to honor that tag instead of its own
// default.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Logging logging.Config `yaml:"logging"`

	Channels map[string]models.Channel `yaml:"channels"`
	Routing  []models.Rule             `yaml:"routing"`

	PrometheusImage imagepipeline.Config `yaml:"prometheus_image"`
	GrafanaImage    imagepipeline.Config `yaml:"grafana_image"`

	JenkinsDedup DedupConfig `yaml:"jenkins_dedup"`

	TemplatesDir string `yaml:"templates_dir"`
}

// useYAMLTags makes viper's mapstructure decoder key off the `yaml`
// struct tag instead of `mapstructure`.
func useYAMLTags(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
}

// configPath resolves the config file location: CONFIG_FILE env var,
// falling back to ./config.yaml.
func configPath() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return "./config.yaml"
}

// Load reads, unmarshals, defaults and validates config.yaml. Any
// failure here is meant to abort process startup; there is no partial
// or best-effort config.
func Load() (*Config, error) {
	path := configPath()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("ConfigError: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecoderConfigOption(useYAMLTags)); err != nil {
		return nil, fmt.Errorf("ConfigError: parsing %s: %w", path, err)
	}

	applyChannelDefaults(v, &cfg)
	applyDedupDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("ConfigError: %w", err)
	}
	return &cfg, nil
}

// applyChannelDefaults fills in the channel id (viper maps lose the key
// once unmarshaled into a struct) and the "defaults to true when
// omitted" behavior documented on models.Channel, which a plain bool
// field cannot express on its own.
func applyChannelDefaults(v *viper.Viper, cfg *Config) {
	for id, ch := range cfg.Channels {
		ch.ID = id
		if !v.IsSet("channels." + id + ".enabled") {
			ch.Enabled = true
		}
		if !v.IsSet("channels." + id + ".send_resolved") {
			ch.SendResolved = true
		}
		cfg.Channels[id] = ch
	}
}

func applyDedupDefaults(cfg *Config) {
	if cfg.JenkinsDedup.TTLSeconds <= 0 {
		cfg.JenkinsDedup.TTLSeconds = 600
	}
}

// Validate checks structural invariants that only make sense once the
// whole config is assembled: every rule's patterns compile, every
// rule's send_to references a declared channel, and every channel names
// a recognized type.
func Validate(cfg *Config) error {
	var errs []error

	for id, ch := range cfg.Channels {
		if ch.Type != models.ChannelChat && ch.Type != models.ChannelWebhook {
			errs = append(errs, fmt.Errorf("channel %q: unknown type %q", id, ch.Type))
		}
		if ch.Template == "" {
			errs = append(errs, fmt.Errorf("channel %q: template is required", id))
		}
	}

	if _, err := router.New(cfg.Routing); err != nil {
		errs = append(errs, err)
	}
	for i, rule := range cfg.Routing {
		for _, id := range rule.SendTo {
			if _, ok := cfg.Channels[id]; !ok {
				errs = append(errs, fmt.Errorf("rule %d: send_to references undeclared channel %q", i, id))
			}
		}
	}

	return errors.Join(errs...)
}
