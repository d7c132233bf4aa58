// Package config loads the service configuration from defaults, an optional
// YAML file and BARK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
)

// EnvPrefix namespaces environment overrides, e.g. BARK_CHAIN_RPCURL
const EnvPrefix = "BARK"

// DefaultPath is read when no file is named and it exists
const DefaultPath = "barkd.yaml"

// Load reads path (or DefaultPath when empty) and returns a validated config.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*types.Config, error) {
	v := New()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			file = DefaultPath
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.ErrConfigError, "failed to read config file "+file, err)
		}
	}

	return Decode(v)
}

// New returns a viper instance carrying the defaults and env bindings
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, types.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Decode unmarshals v into a Config and validates it
func Decode(v *viper.Viper) (*types.Config, error) {
	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, "failed to decode config", err)
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = cfg.Chain.Cluster.DefaultRPCURL()
	}

	if err := utils.ValidateConfig(cfg); err != nil {
		var actionErr *types.ActionError
		if errors.As(err, &actionErr) {
			return nil, actionErr
		}
		return nil, types.WrapError(types.ErrConfigError, "invalid config", err)
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// through Unmarshal. List values are registered as plain maps.
func setDefaults(v *viper.Viper, d *types.Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.baseURL", d.Server.BaseURL)
	v.SetDefault("server.trustedProxies", d.Server.TrustedProxies)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)

	v.SetDefault("chain.cluster", string(d.Chain.Cluster))
	v.SetDefault("chain.rpcURL", d.Chain.RPCURL)
	v.SetDefault("chain.timeout", d.Chain.Timeout)
	v.SetDefault("chain.computeUnitPrice", d.Chain.ComputeUnitPrice)

	v.SetDefault("merchant.recipient", d.Merchant.Recipient)
	v.SetDefault("merchant.defaultAmount", d.Merchant.DefaultAmount)
	v.SetDefault("merchant.presets", d.Merchant.Presets)
	v.SetDefault("merchant.label", d.Merchant.Label)

	tokens := make([]map[string]any, 0, len(d.Tokens))
	for _, t := range d.Tokens {
		tokens = append(tokens, map[string]any{
			"symbol":   t.Symbol,
			"mint":     t.Mint,
			"decimals": t.Decimals,
		})
	}
	v.SetDefault("tokens", tokens)

	actions := make([]map[string]any, 0, len(d.Actions))
	for _, a := range d.Actions {
		actions = append(actions, map[string]any{
			"name":        a.Name,
			"title":       a.Title,
			"icon":        a.Icon,
			"description": a.Description,
			"label":       a.Label,
			"asset":       a.Asset,
		})
	}
	v.SetDefault("actions", actions)
	v.SetDefault("rules", []map[string]any{})

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}
