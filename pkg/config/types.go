// pkg/config/types.go
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration structure for the queuectl CLI. It covers
// process-level settings only; queue behavior (backoff, defaults, retry
// budget) lives in the database so every process sees the same values.
type Config struct {
	DataDir   string          `description:"Directory holding the database and job logs" koanf:"data_dir"`
	Log       LogConfig       `description:"Logging configuration" koanf:"log"`
	Worker    WorkerConfig    `description:"Worker pool configuration" koanf:"worker"`
	Dashboard DashboardConfig `description:"Dashboard server configuration" koanf:"dashboard"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: debug | info | warn | error" koanf:"level"`
	Format string `description:"Log format: json | text" koanf:"format"`
}

// WorkerConfig holds configuration for 'queuectl worker start'.
type WorkerConfig struct {
	Count        int           `description:"Number of concurrent workers" koanf:"count"`
	PollInterval time.Duration `description:"Sleep between empty claim attempts" koanf:"poll_interval"`
}

// DashboardConfig holds configuration for 'queuectl dashboard start'.
type DashboardConfig struct {
	Addr string `description:"Dashboard listen address" koanf:"addr"`
	Port int    `description:"Dashboard listen port" koanf:"port"`
}

// DBPath returns the SQLite database path under the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "queuectl.db")
}

// LogsDir returns the per-job log file directory under the data directory.
func (c Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}
