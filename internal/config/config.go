package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the diagnostic service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Probe     ProbeConfig     `yaml:"probe"`
	Orgs      OrgsConfig      `yaml:"orgs"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HTTPConfig struct {
	ServerAddress   string        `yaml:"server_address"`
	ServerPort      int           `yaml:"server_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RequestTimeout bounds a handler's own work and must leave room
	// inside WriteTimeout for the response.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ProbeConfig struct {
	PingCount         int           `yaml:"ping_count"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingWait          time.Duration `yaml:"ping_wait"`
	TracerouteQueries int           `yaml:"traceroute_queries"`
	MaxHops           int           `yaml:"max_hops"`
	HopWait           time.Duration `yaml:"hop_wait"`
	TracerouteTimeout time.Duration `yaml:"traceroute_timeout"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
}

// OrgsConfig selects the organization resolver: cymru, geoip or none.
type OrgsConfig struct {
	Backend       string        `yaml:"backend"`
	DNSServer     string        `yaml:"dns_server"`
	Timeout       time.Duration `yaml:"timeout"`
	GeoIPDatabase string        `yaml:"geoip_database"`
	Parallelism   int           `yaml:"parallelism"`
}

// LoggingConfig selects where log lines go: stdout, syslog or devlog.
type LoggingConfig struct {
	Sink          string `yaml:"sink"`
	SyslogAddress string `yaml:"syslog_address"`
	Tag           string `yaml:"tag"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			ServerAddress:   "0.0.0.0",
			ServerPort:      8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  40 * time.Second,
		},
		Probe: ProbeConfig{
			PingCount:         3,
			PingInterval:      time.Second,
			PingWait:          2 * time.Second,
			TracerouteQueries: 1,
			MaxHops:           30,
			HopWait:           2 * time.Second,
			TracerouteTimeout: 30 * time.Second,
			MaxConcurrent:     4,
		},
		Orgs: OrgsConfig{
			Backend:     "cymru",
			DNSServer:   "8.8.8.8:53",
			Timeout:     3 * time.Second,
			Parallelism: 4,
		},
		Logging: LoggingConfig{
			Sink: "stdout",
			Tag:  "netcheck",
		},
		Telemetry: TelemetryConfig{
			Service: "netcheck",
		},
	}
}

// Load reads configuration from a yaml file and applies NETCHECK_* environment
// overrides. A missing file falls back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListenAddr joins the configured address and port.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.HTTP.ServerAddress, strconv.Itoa(c.HTTP.ServerPort))
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("NETCHECK_SERVER_ADDRESS"); v != "" {
		cfg.HTTP.ServerAddress = v
	}
	if v := os.Getenv("NETCHECK_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NETCHECK_SERVER_PORT: %w", err)
		}
		cfg.HTTP.ServerPort = port
	}
	if v := os.Getenv("NETCHECK_LOG_SINK"); v != "" {
		cfg.Logging.Sink = v
	}
	if v := os.Getenv("NETCHECK_SYSLOG_ADDRESS"); v != "" {
		cfg.Logging.SyslogAddress = v
	}
	if v := os.Getenv("NETCHECK_ORG_BACKEND"); v != "" {
		cfg.Orgs.Backend = v
	}
	if v := os.Getenv("NETCHECK_GEOIP_DATABASE"); v != "" {
		cfg.Orgs.GeoIPDatabase = v
	}
	if v := os.Getenv("NETCHECK_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	return nil
}

func (c Config) validate() error {
	if c.HTTP.ServerPort < 0 || c.HTTP.ServerPort > 65535 {
		return fmt.Errorf("http.server_port %d out of range", c.HTTP.ServerPort)
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("http.request_timeout must be positive")
	}
	if c.HTTP.WriteTimeout > 0 && c.HTTP.RequestTimeout >= c.HTTP.WriteTimeout {
		return fmt.Errorf("http.request_timeout %s must be shorter than http.write_timeout %s",
			c.HTTP.RequestTimeout, c.HTTP.WriteTimeout)
	}
	switch c.Logging.Sink {
	case "stdout", "devlog":
	case "syslog":
		if c.Logging.SyslogAddress == "" {
			return errors.New("logging.syslog_address is required for the syslog sink")
		}
	default:
		return fmt.Errorf("unknown logging.sink %q", c.Logging.Sink)
	}
	if c.Probe.MaxConcurrent <= 0 {
		return errors.New("probe.max_concurrent must be positive")
	}
	if c.Orgs.Parallelism <= 0 {
		return errors.New("orgs.parallelism must be positive")
	}
	return nil
}
