package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration `cmd/fullnode` uses when no
// config file is present.
func Default() Config {
	var c Config
	c.Network.ListenAddr = "/ip4/0.0.0.0/tcp/4001"
	c.Network.PerPeerLimit = 8
	c.Network.GossipTopic = "block-announce"
	c.Sync.Workers = 4
	c.Sync.QueueCapacity = 64
	c.Sync.MaxBlocks = 100
	c.Executor.TraceCacheCap = 256
	c.Storage.DBPath = "./fullnode.db"
	c.Logging.Level = "info"
	c.Debug.HTTPAddr = "127.0.0.1:9090"
	return c
}

// WriteDefault emits the default configuration as YAML to path, for the
// `fullnode init-config` command.
func WriteDefault(path string) error {
	b, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
