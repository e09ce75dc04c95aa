package coapconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "COAP"

// Loader reads a Config from the package defaults, a config file, and
// environment variables (COAP_-prefixed, matching envPrefix), in that
// order of increasing precedence for viper's resolution.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader builds a Loader that searches configPath (in addition to
// "./configs" and the working directory) for a config file named
// "coap.yaml".
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath, v: viper.New()}
}

// Load resolves and validates a Config. A missing config file is not an
// error — Load falls back to Default() plus whatever environment
// variables are set.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(envPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults()
	l.bindEnvVars()
	l.loadConfigFile()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("coapconfig: unmarshal: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("coapconfig: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) loadConfigFile() {
	if l.configPath != "" {
		l.v.AddConfigPath(l.configPath)
	}
	l.v.AddConfigPath("./configs")
	l.v.AddConfigPath(".")
	l.v.SetConfigName("coap")
	_ = l.v.ReadInConfig() // absent config file is not fatal, see Load's doc comment
}

func (l *Loader) bindEnvVars() {
	_ = l.v.BindEnv("server.host", "COAP_SERVER_HOST")
	_ = l.v.BindEnv("server.port", "COAP_SERVER_PORT")
	_ = l.v.BindEnv("server.max_message_size", "COAP_SERVER_MAX_MESSAGE_SIZE")
	_ = l.v.BindEnv("server.block_wise_transfer", "COAP_SERVER_BLOCK_WISE_TRANSFER")
	_ = l.v.BindEnv("pool.shard_count", "COAP_POOL_SHARD_COUNT")
	_ = l.v.BindEnv("pool.request_timeout", "COAP_POOL_REQUEST_TIMEOUT")
	_ = l.v.BindEnv("log.level", "COAP_LOG_LEVEL")
	_ = l.v.BindEnv("log.file_path", "COAP_LOG_FILE_PATH")
}

func (l *Loader) setDefaults() {
	d := Default()
	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.max_message_size", d.Server.MaxMessageSize)
	l.v.SetDefault("server.block_wise_transfer", d.Server.BlockWiseTransfer)
	l.v.SetDefault("server.handshake_timeout", d.Server.HandshakeTimeout)
	l.v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	l.v.SetDefault("pool.shard_count", d.Pool.ShardCount)
	l.v.SetDefault("pool.request_timeout", d.Pool.RequestTimeout)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
	l.v.SetDefault("log.output", d.Log.Output)
	l.v.SetDefault("log.file_path", d.Log.FilePath)
	l.v.SetDefault("log.max_size", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)
	l.v.SetDefault("log.max_age", d.Log.MaxAgeDays)
	l.v.SetDefault("log.compress", d.Log.Compress)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Pool.ShardCount <= 0 {
		return fmt.Errorf("pool shard_count must be positive, got %d", cfg.Pool.ShardCount)
	}
	return nil
}
