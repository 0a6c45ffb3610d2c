// Package config layers the node's CLI flags with environment variables
// (SOLECHAIN_ prefix) and an optional config file, via viper bound to the
// cobra command's pflag set.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SOLECHAIN"

// Config is the fully resolved set of flags the start command needs.
type Config struct {
	P2PAddr      string
	APIAddr      string
	ConnectPeers []string
	P2PWorkers   int
	Verbosity    int
}

// RegisterFlags adds every flag named in spec §6 to cmd, with the
// documented defaults.
func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().String("p2p", "127.0.0.1:6000", "P2P listen address")
	cmd.Flags().String("api", "127.0.0.1:7000", "HTTP API listen address")
	cmd.Flags().StringArrayP("connect", "c", nil, "peer multiaddr to connect to at startup (repeatable)")
	cmd.Flags().Int("p2p-workers", 4, "gossip worker pool size")
	cmd.Flags().CountP("verbose", "v", "increase log verbosity (repeatable)")
	cmd.Flags().String("config", "", "optional config file path")
}

// Load resolves cmd's flags through viper: explicit flag > env var
// (SOLECHAIN_P2P, SOLECHAIN_API, ...) > config file > flag default.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read config file %q: %w", path, err)
		}
	}

	return &Config{
		P2PAddr:      v.GetString("p2p"),
		APIAddr:      v.GetString("api"),
		ConnectPeers: v.GetStringSlice("connect"),
		P2PWorkers:   v.GetInt("p2p-workers"),
		Verbosity:    v.GetInt("verbose"),
	}, nil
}
