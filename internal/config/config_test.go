package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
q_config: servers.json
output_dir: out
local_port: 27018
parallel: 1
redis_addr: redis.test:6379
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "servers.json", cfg.EndpointsFile)
	assert.Equal(t, DefaultCTIFile, cfg.CTIFile)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, 27018, cfg.LocalPort)
	assert.Equal(t, "redis.test:6379", cfg.RedisAddr)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeFile(t, "run.json", `{
		"log_file": "run.log",
		"log_level": "info",
		"skip_failed_queries": true,
		"pushgateway": "http://pgw:9091"
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "run.log", cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.SkipFailedQueries)
	assert.Equal(t, "http://pgw:9091", cfg.Pushgateway)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "run.toml", `parallel = 1`)
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromFile_ParallelEphemeralPort(t *testing.T) {
	path := writeFile(t, "run.yaml", "parallel: 4\nlocal_port: 0\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, 0, cfg.LocalPort)
	assert.Equal(t, MongoPort, cfg.RemotePort)
}

func TestLoadFromFile_LocalPortDefaultsWhenAbsent(t *testing.T) {
	path := writeFile(t, "run.json", `{"output_dir": "out"}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, MongoPort, cfg.LocalPort)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Q_config.json", cfg.EndpointsFile)
	assert.Equal(t, "config.json", cfg.CTIFile)
	assert.Equal(t, "quad9_domains.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "localhost", cfg.LocalHost)
	assert.Equal(t, 27017, cfg.LocalPort)
	assert.Equal(t, 27017, cfg.RemotePort)
	assert.Equal(t, 22, cfg.SSHPort)
	assert.Equal(t, 1, cfg.Parallel)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }, true},
		{"parallel with fixed port", func(c *Config) { c.Parallel = 4 }, true},
		{"parallel with ephemeral port", func(c *Config) { c.Parallel = 4; c.LocalPort = 0 }, false},
		{"port out of range", func(c *Config) { c.RemotePort = 70000 }, true},
		{"zero ssh timeout", func(c *Config) { c.SSHTimeoutSec = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := Default()

	cfg.MergeWithFlags(map[string]interface{}{
		"q_config":     "other.json",
		"local_port":   0,
		"parallel":     3,
		"output_dir":   "",
		"otel_service": "quad9-adhoc",
	})

	assert.Equal(t, "other.json", cfg.EndpointsFile)
	assert.Equal(t, 0, cfg.LocalPort)
	assert.Equal(t, 3, cfg.Parallel)
	assert.Equal(t, ".", cfg.OutputDir, "empty flag must not override")
	assert.Equal(t, "quad9-adhoc", cfg.OTELService)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.test:6379")
	t.Setenv("PUSHGATEWAY_URL", "http://pgw.test:9091")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OTEL_SERVICE_NAME", "quad9-nightly")

	cfg := &Config{}
	cfg.LoadFromEnv()

	assert.Equal(t, "redis.test:6379", cfg.RedisAddr)
	assert.Equal(t, "http://pgw.test:9091", cfg.Pushgateway)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "quad9-nightly", cfg.OTELService)
}
