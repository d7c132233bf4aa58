package types

import "time"

// Config contains the whole service configuration. It is loaded by the
// config package and validated with the struct tags below.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain" validate:"required"`
	Merchant MerchantConfig `mapstructure:"merchant" validate:"required"`
	Tokens   []TokenConfig  `mapstructure:"tokens" validate:"dive"`
	Actions  []ActionConfig `mapstructure:"actions" validate:"required,min=1,dive"`
	Rules    []Rule         `mapstructure:"rules" validate:"dive"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`

	// Overrides the origin derived from the request when building hrefs
	BaseURL string `mapstructure:"baseURL" validate:"omitempty,url"`

	// Peers allowed to set X-Forwarded-Proto/Host, as IPs or CIDRs. Empty
	// means forwarded headers are ignored.
	TrustedProxies []string `mapstructure:"trustedProxies" validate:"dive,cidr|ip"`

	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type ChainConfig struct {
	Cluster Cluster       `mapstructure:"cluster" validate:"required,cluster"`
	RPCURL  string        `mapstructure:"rpcURL" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Priority fee in micro-lamports per compute unit; 0 omits the instruction
	ComputeUnitPrice uint64 `mapstructure:"computeUnitPrice"`
}

type MerchantConfig struct {
	Recipient     string   `mapstructure:"recipient" validate:"required,solana_pubkey"`
	DefaultAmount string   `mapstructure:"defaultAmount" validate:"required,positive_decimal"`
	Presets       []string `mapstructure:"presets" validate:"min=1,max=4,dive,positive_decimal"`
	Label         string   `mapstructure:"label"`
}

// TokenConfig is a fungible token the service accepts
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol" validate:"required"`
	Mint     string `mapstructure:"mint" validate:"required,solana_pubkey"`
	Decimals uint8  `mapstructure:"decimals" validate:"lte=18"`
}

// ActionConfig is the static part of an action descriptor. Asset is "SOL",
// "MEMO" or the symbol of a configured token.
type ActionConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Title       string `mapstructure:"title" validate:"required"`
	Icon        string `mapstructure:"icon" validate:"required,url"`
	Description string `mapstructure:"description"`
	Label       string `mapstructure:"label"`
	Asset       string `mapstructure:"asset" validate:"required"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultMerchantRecipient receives payments when neither config nor query names one
const DefaultMerchantRecipient = "8AuVcQCqR3ipiAiv1X4Nuaqb4X6V9Bi1sCCk9V5LzeYP"

// DefaultConfig returns a devnet configuration with the stock donate actions
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Chain: ChainConfig{
			Cluster: ClusterDevnet,
			Timeout: 15 * time.Second,
		},
		Merchant: MerchantConfig{
			Recipient:     DefaultMerchantRecipient,
			DefaultAmount: "0.1",
			Presets:       []string{"1", "5", "10"},
			Label:         "BARK",
		},
		Tokens: []TokenConfig{
			{Symbol: "USDC", Mint: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", Decimals: 6},
		},
		Actions: []ActionConfig{
			{
				Name:        "donate-sol",
				Title:       "Donate SOL to BARK",
				Icon:        "https://barkprotocol.net/icon.png",
				Description: "Support the BARK community by donating SOL.",
				Label:       "Donate",
				Asset:       NativeSymbol,
			},
			{
				Name:        "donate-usdc",
				Title:       "Donate USDC to BARK",
				Icon:        "https://barkprotocol.net/icon.png",
				Description: "Support the BARK community by donating USDC.",
				Label:       "Donate",
				Asset:       "USDC",
			},
			{
				Name:        "memo",
				Title:       "Leave a note for BARK",
				Icon:        "https://barkprotocol.net/icon.png",
				Description: "Write a memo on chain.",
				Label:       "Send memo",
				Asset:       MemoSymbol,
			},
		},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Action returns the action named name
func (c *Config) Action(name string) (ActionConfig, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionConfig{}, false
}

// Token looks a token up by symbol or mint address
func (c *Config) Token(symbolOrMint string) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if t.Symbol == symbolOrMint || t.Mint == symbolOrMint {
			return t, true
		}
	}
	return TokenConfig{}, false
}
