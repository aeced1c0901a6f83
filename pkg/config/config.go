// Package config loads the YAML-backed startup parameters for the
// tick-driven core: network binding, pool/worker sizing, heartbeat
// cadence, optional database connection, and the admin listen address.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the full set of startup parameters for cmd/realtimed.
type Config struct {
	Port      int           `yaml:"port"`
	NCore     int           `yaml:"n_core"`
	NNet      int           `yaml:"n_net"`
	NDB       int           `yaml:"n_db"`
	Stripes   int           `yaml:"stripes"`
	Heartbeat time.Duration `yaml:"heartbeat"`

	Mongo MongoConfig `yaml:"mongo"`

	AdminAddr string `yaml:"admin_addr"`
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`

	// InstanceID identifies this process in log lines and admin
	// responses. Default generates a random one; an operator running a
	// fixed fleet can pin it in the config file to survive restarts.
	InstanceID string `yaml:"instance_id"`
}

// MongoConfig carries the optional database connection. A zero-value
// MongoConfig (empty URI) means the core runs without a database
// gateway.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// rawConfig mirrors Config but with Heartbeat as a string, since
// yaml.v3 has no built-in support for time.Duration's "20ms" notation.
type rawConfig struct {
	Port      int         `yaml:"port"`
	NCore     int         `yaml:"n_core"`
	NNet      int         `yaml:"n_net"`
	NDB       int         `yaml:"n_db"`
	Stripes   int         `yaml:"stripes"`
	Heartbeat string      `yaml:"heartbeat"`
	Mongo     MongoConfig `yaml:"mongo"`
	AdminAddr string      `yaml:"admin_addr"`
	LogLevel  string      `yaml:"log_level"`
	LogJSON   bool        `yaml:"log_json"`
	InstanceID string     `yaml:"instance_id"`
}

// UnmarshalYAML parses Heartbeat with time.ParseDuration instead of
// yaml.v3's default numeric decoding.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := rawConfig{
		Port:      c.Port,
		NCore:     c.NCore,
		NNet:      c.NNet,
		NDB:       c.NDB,
		Stripes:   c.Stripes,
		Heartbeat: c.Heartbeat.String(),
		Mongo:     c.Mongo,
		AdminAddr:  c.AdminAddr,
		LogLevel:   c.LogLevel,
		LogJSON:    c.LogJSON,
		InstanceID: c.InstanceID,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	heartbeat := c.Heartbeat
	if raw.Heartbeat != "" {
		d, err := time.ParseDuration(raw.Heartbeat)
		if err != nil {
			return fmt.Errorf("parse heartbeat %q: %w", raw.Heartbeat, err)
		}
		heartbeat = d
	}

	*c = Config{
		Port:      raw.Port,
		NCore:     raw.NCore,
		NNet:      raw.NNet,
		NDB:       raw.NDB,
		Stripes:   raw.Stripes,
		Heartbeat: heartbeat,
		Mongo:     raw.Mongo,
		AdminAddr:  raw.AdminAddr,
		LogLevel:   raw.LogLevel,
		LogJSON:    raw.LogJSON,
		InstanceID: raw.InstanceID,
	}
	return nil
}

// Default returns the baseline configuration used when no file is
// given and no flags override a field.
func Default() Config {
	return Config{
		Port:      9200,
		NCore:     4,
		NNet:      2,
		NDB:       2,
		Stripes:   2,
		Heartbeat: 50 * time.Millisecond,
		AdminAddr:  "127.0.0.1:9201",
		LogLevel:   "info",
		InstanceID: uuid.NewString(),
	}
}

// Load reads and parses a YAML config file, starting from Default and
// overlaying whatever the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// HasDatabase reports whether a Mongo connection was configured.
func (c Config) HasDatabase() bool {
	return c.Mongo.URI != ""
}

// Validate rejects a configuration that would leave the core unable to
// start: a core pool too small to drain its own ingress fan-out, a
// non-positive network worker count, stripe count, or heartbeat, or a
// negative database worker count.
func (c Config) Validate() error {
	if c.NCore < 2 {
		// The ingress tick fans client_inputs out onto the core pool and
		// blocks on counter.Wait() for it to drain; a single core worker
		// would have to wait on work only it can run.
		return fmt.Errorf("n_core must be at least 2, got %d", c.NCore)
	}
	if c.NNet <= 0 {
		return fmt.Errorf("n_net must be positive, got %d", c.NNet)
	}
	if c.Stripes <= 0 {
		return fmt.Errorf("stripes must be positive, got %d", c.Stripes)
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive, got %s", c.Heartbeat)
	}
	if c.NDB < 0 {
		return fmt.Errorf("n_db must not be negative, got %d", c.NDB)
	}
	return nil
}
