package config

import (
	"fmt"
	"os"
)

// Defaults used when neither file, env nor flags set a value.
const (
	DefaultEndpointsFile = "Q_config.json"
	DefaultCTIFile       = "config.json"
	DefaultLogFile       = "quad9_domains.log"
	MongoPort            = 27017
)

// Config holds the runtime settings of a fetch run. The endpoints and CTI
// files are loaded separately by LoadEndpoints and LoadCTI.
type Config struct {
	// Inputs
	EndpointsFile string `yaml:"q_config" json:"q_config"`
	CTIFile       string `yaml:"cti_config" json:"cti_config"`

	// Logging and output
	LogFile   string `yaml:"log_file" json:"log_file"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Tunnel
	LocalHost     string `yaml:"local_host" json:"local_host"`
	LocalPort     int    `yaml:"local_port" json:"local_port"`
	RemotePort    int    `yaml:"remote_port" json:"remote_port"`
	SSHPort       int    `yaml:"ssh_port" json:"ssh_port"`
	SSHTimeoutSec int    `yaml:"ssh_timeout_sec" json:"ssh_timeout_sec"`
	KnownHosts    string `yaml:"known_hosts" json:"known_hosts"`

	// Fan-out
	Parallel          int  `yaml:"parallel" json:"parallel"`
	SkipFailedQueries bool `yaml:"skip_failed_queries" json:"skip_failed_queries"`

	// Redis union store
	RedisAddr   string `yaml:"redis_addr" json:"redis_addr"`
	RedisTTLSec int    `yaml:"redis_ttl_sec" json:"redis_ttl_sec"`

	// Observability
	Pushgateway  string `yaml:"pushgateway" json:"pushgateway"`
	OTELEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure" json:"otel_insecure"`
	OTELService  string `yaml:"otel_service" json:"otel_service"`
}

// Default returns a Config with every default applied. Files are decoded on
// top of it, so an explicit local_port: 0 is kept.
func Default() *Config {
	c := &Config{LocalPort: MongoPort}
	c.SetDefaults()
	return c
}

// SetDefaults fills empty fields. LocalPort is left alone since 0 asks for
// an ephemeral port; Default seeds it.
func (c *Config) SetDefaults() {
	if c.EndpointsFile == "" {
		c.EndpointsFile = DefaultEndpointsFile
	}
	if c.CTIFile == "" {
		c.CTIFile = DefaultCTIFile
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = "debug"
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.LocalHost == "" {
		c.LocalHost = "localhost"
	}
	if c.RemotePort == 0 {
		c.RemotePort = MongoPort
	}
	if c.SSHPort == 0 {
		c.SSHPort = 22
	}
	if c.SSHTimeoutSec == 0 {
		c.SSHTimeoutSec = 30
	}
	if c.Parallel == 0 {
		c.Parallel = 1
	}
	if c.RedisTTLSec == 0 {
		c.RedisTTLSec = 86400
	}
	if c.OTELService == "" {
		c.OTELService = "quad9-domains"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1")
	}
	if c.Parallel > 1 && c.LocalPort != 0 {
		return fmt.Errorf("parallel fetch needs local_port 0 so each tunnel binds its own port (got %d)", c.LocalPort)
	}
	for name, p := range map[string]int{"local_port": c.LocalPort, "remote_port": c.RemotePort, "ssh_port": c.SSHPort} {
		if p < 0 || p > 65535 {
			return fmt.Errorf("%s %d out of range", name, p)
		}
	}
	if c.SSHTimeoutSec < 1 {
		return fmt.Errorf("ssh_timeout_sec must be at least 1")
	}
	if c.RedisTTLSec < 1 {
		return fmt.Errorf("redis_ttl_sec must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	config := Default()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// MergeWithFlags merges command-line flags with file configuration
// Command-line flags take precedence over file configuration
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	if v, ok := flags["q_config"].(string); ok && v != "" {
		c.EndpointsFile = v
	}
	if v, ok := flags["cti_config"].(string); ok && v != "" {
		c.CTIFile = v
	}
	if v, ok := flags["log_file"].(string); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := flags["log_level"].(string); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := flags["output_dir"].(string); ok && v != "" {
		c.OutputDir = v
	}
	// 0 is meaningful here: bind an ephemeral port. Callers only pass
	// local_port when the flag was set explicitly.
	if v, ok := flags["local_port"].(int); ok && v >= 0 {
		c.LocalPort = v
	}
	if v, ok := flags["known_hosts"].(string); ok && v != "" {
		c.KnownHosts = v
	}
	if v, ok := flags["parallel"].(int); ok && v > 0 {
		c.Parallel = v
	}
	if v, ok := flags["skip_failed_queries"].(bool); ok && v {
		c.SkipFailedQueries = true
	}
	if v, ok := flags["redis_addr"].(string); ok && v != "" {
		c.RedisAddr = v
	}
	if v, ok := flags["pushgateway"].(string); ok && v != "" {
		c.Pushgateway = v
	}
	if v, ok := flags["otel_endpoint"].(string); ok && v != "" {
		c.OTELEndpoint = v
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
	if v, ok := flags["otel_service"].(string); ok && v != "" {
		c.OTELService = v
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		c.Pushgateway = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.OTELService = v
	}
}
