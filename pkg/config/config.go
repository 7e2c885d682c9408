// Package config provides a reusable loader for full-node configuration
// files and environment variables, layering viper config files with
// godotenv-loaded environment overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/starkfull/node/pkg/utils"
)

// Config is the unified configuration for a full-node process.
type Config struct {
	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		PerPeerLimit   int64    `mapstructure:"per_peer_limit" json:"per_peer_limit"`
		GossipTopic    string   `mapstructure:"gossip_topic" json:"gossip_topic"`
	} `mapstructure:"network" json:"network"`

	Sync struct {
		Workers       int `mapstructure:"workers" json:"workers"`
		QueueCapacity int `mapstructure:"queue_capacity" json:"queue_capacity"`
		MaxBlocks     int `mapstructure:"max_blocks" json:"max_blocks"`
	} `mapstructure:"sync" json:"sync"`

	Executor struct {
		RemoteAddr    string `mapstructure:"remote_addr" json:"remote_addr"`
		TraceCacheCap int    `mapstructure:"trace_cache_capacity" json:"trace_cache_capacity"`
	} `mapstructure:"executor" json:"executor"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	Debug struct {
		HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`
	} `mapstructure:"debug" json:"debug"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up overrides from .env via godotenv.Load in cmd/

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FULLNODE_ENV environment
// variable to select an overlay file (e.g. "staging", "prod").
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FULLNODE_ENV", ""))
}
