// Package config holds the endpoints and loop periods shared by every
// chirp process. All values have working defaults so a local cluster
// runs with no config file at all; a YAML file overrides field by field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "2s" or "500ms".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Endpoints lists the socket addresses of the cluster.
type Endpoints struct {
	Frontend  string `yaml:"frontend"`  // clients -> broker (ROUTER)
	Backend   string `yaml:"backend"`   // broker <-> app servers (DEALER)
	Control   string `yaml:"control"`   // app servers -> broker (REP)
	Notify    string `yaml:"notify"`    // broker -> subscribers (PUB)
	Heartbeat string `yaml:"heartbeat"` // app servers -> broker (PULL)
	DataStore string `yaml:"datastore"` // app servers -> data store (REP)
}

// Config is the full process configuration.
type Config struct {
	Endpoints Endpoints `yaml:"endpoints"`

	// Broker liveness tracking.
	HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
	SweepInterval    Duration `yaml:"sweep_interval"`

	// App server periodic loops.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	MembershipRefresh Duration `yaml:"membership_refresh"`
	ElectionInterval  Duration `yaml:"election_interval"`
	DriftInterval     Duration `yaml:"drift_interval"`

	// Bound on every request/reply round-trip.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Prometheus listen address for the broker; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration for a single-host cluster on the
// standard ports.
func Default() *Config {
	return &Config{
		Endpoints: Endpoints{
			Frontend:  "tcp://127.0.0.1:5555",
			Backend:   "tcp://127.0.0.1:6000",
			Control:   "tcp://127.0.0.1:6001",
			Notify:    "tcp://127.0.0.1:6010",
			DataStore: "tcp://127.0.0.1:6011",
			Heartbeat: "tcp://127.0.0.1:6015",
		},
		HeartbeatTimeout:  Duration(4 * time.Second),
		SweepInterval:     Duration(1 * time.Second),
		HeartbeatInterval: Duration(2 * time.Second),
		MembershipRefresh: Duration(10 * time.Second),
		ElectionInterval:  Duration(12 * time.Second),
		DriftInterval:     Duration(5 * time.Second),
		RequestTimeout:    Duration(5 * time.Second),
		MetricsAddr:       "127.0.0.1:9090",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
