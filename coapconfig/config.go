// Package coapconfig loads the ambient configuration that parameterizes
// a coap server/client binding built on this module: listen addresses,
// timeouts, logging, and the transaction table's shard count. The codec
// packages (message, udp, tcp) take no configuration of their own — this
// package only configures the server and pool layers.
package coapconfig

import "time"

// Config is the root configuration document.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Pool   PoolConfig   `mapstructure:"pool"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the TCP dispatch layer.
type ServerConfig struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	MaxMessageSize      uint32        `mapstructure:"max_message_size"`
	BlockWiseTransfer   bool          `mapstructure:"block_wise_transfer"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake_timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
}

// PoolConfig configures the delayed-transaction table.
type PoolConfig struct {
	ShardCount     int           `mapstructure:"shard_count"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig configures logrus output, mirroring the fields the rest of
// the pack's config loaders expose for their logging subsystem.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns the configuration a standalone binding runs with when
// no config file or environment override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              5683,
			MaxMessageSize:    1152,
			BlockWiseTransfer: false,
			HandshakeTimeout:  10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		Pool: PoolConfig{
			ShardCount:     16,
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "./logs/coap.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}
