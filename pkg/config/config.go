// CLAUDE:SUMMARY Server configuration: YAML file with TERMINDEX_* environment overrides via cleanenv, validation and slog setup.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration of the termindex server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Index  IndexConfig  `yaml:"index"`
	Import ImportConfig `yaml:"import"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds listener settings. With QUIC enabled the chassis serves
// TLS TCP, HTTP/3 and MCP over QUIC on Addr; otherwise plain HTTP.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"TERMINDEX_ADDR"             env-default:":8420"`
	QUIC            bool          `yaml:"quic"             env:"TERMINDEX_QUIC"             env-default:"false"`
	CertFile        string        `yaml:"cert_file"        env:"TERMINDEX_CERT_FILE"`
	KeyFile         string        `yaml:"key_file"         env:"TERMINDEX_KEY_FILE"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"TERMINDEX_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// IndexConfig locates the code system directories.
type IndexConfig struct {
	Dir string `yaml:"dir" env:"TERMINDEX_INDEX_DIR" env-default:"codesystems"`
}

// ImportConfig holds import source settings. An empty SourcesDB means
// sources.db inside the index directory; CheckInterval 0 disables checks.
type ImportConfig struct {
	SourcesDB     string        `yaml:"sources_db"     env:"TERMINDEX_SOURCES_DB"`
	CheckInterval time.Duration `yaml:"check_interval" env:"TERMINDEX_CHECK_INTERVAL" env-default:"24h"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"TERMINDEX_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"TERMINDEX_LOG_FORMAT" env-default:"text"`
}

// SourcesDBPath resolves the import source database location.
func (c *Config) SourcesDBPath() string {
	if c.Import.SourcesDB != "" {
		return c.Import.SourcesDB
	}
	return filepath.Join(c.Index.Dir, "sources.db")
}
