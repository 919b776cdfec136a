package blackbox

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
)

// Config is a container for all config derived from the blackbox
// config.toml.
type Config struct {
	PrometheusListenAddr string   `toml:"prometheus_listen_addr" split_words:"true"`
	SentryDSN            string   `toml:"sentry_dsn" envconfig:"sentry_dsn"`
	Sleep                Duration `toml:"sleep"`
	Logging              Logging  `toml:"logging"`
	Probes               []Probe  `toml:"probe"`
}

// Logging configures the daemon's log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Probe is one stream URL fetched every cycle.
type Probe struct {
	Name              string   `toml:"name"`
	URL               string   `toml:"url"`
	ByteLimit         int64    `toml:"byte_limit"`
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`
}

// Duration is a trick to let our TOML library parse durations from strings.
type Duration time.Duration

func (d *Duration) Duration() time.Duration {
	if d != nil {
		return time.Duration(*d)
	}
	return 0
}

func (d *Duration) UnmarshalText(text []byte) error {
	td, err := time.ParseDuration(string(text))
	if err == nil {
		*d = Duration(td)
	}
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load reads the TOML config and applies environment overrides carrying
// the HTTPSOURCE_BLACKBOX prefix.
func Load(file io.Reader) (Config, error) {
	var cfg Config

	if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("load toml: %v", err)
	}

	if err := envconfig.Process("httpsource_blackbox", &cfg); err != nil {
		return Config{}, fmt.Errorf("envconfig: %v", err)
	}

	cfg.setDefaults()

	return cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Sleep == 0 {
		cfg.Sleep = Duration(15 * time.Minute)
	}
}

// Validate checks the Config for sanity.
func (cfg *Config) Validate() error {
	for _, run := range []func() error{
		cfg.validateListenAddr,
		cfg.validateSleep,
		cfg.validateProbes,
	} {
		if err := run(); err != nil {
			return err
		}
	}

	return nil
}

func (cfg *Config) validateListenAddr() error {
	if cfg.PrometheusListenAddr == "" {
		return fmt.Errorf("missing prometheus_listen_addr")
	}
	return nil
}

func (cfg *Config) validateSleep() error {
	if cfg.Sleep < 0 {
		return fmt.Errorf("sleep time is less than 0")
	}
	return nil
}

func (cfg *Config) validateProbes() error {
	if len(cfg.Probes) == 0 {
		return fmt.Errorf("must define at least one probe")
	}

	for _, probe := range cfg.Probes {
		if len(probe.Name) == 0 {
			return fmt.Errorf("all probes must have a 'name' attribute")
		}

		parsedURL, err := url.Parse(probe.URL)
		if err != nil {
			return err
		}

		if s := parsedURL.Scheme; s != "http" && s != "https" {
			return fmt.Errorf("unsupported probe URL scheme: %v", probe.URL)
		}
	}

	return nil
}
