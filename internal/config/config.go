package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Events      EventsConfig      `mapstructure:"events"`
	Log         LogConfig         `mapstructure:"log"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Methodology MethodologyConfig `mapstructure:"methodology"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Incentive   IncentiveConfig   `mapstructure:"incentive"`
	Exchanges   []ExchangeConfig  `mapstructure:"exchanges"`
	Access      AccessConfig      `mapstructure:"access"`
	Oracle      OracleConfig      `mapstructure:"oracle"`
	Paper       PaperConfig       `mapstructure:"paper"`
	Keeper      KeeperConfig      `mapstructure:"keeper"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	// RequireSignature=false trusts the X-Caller header (dev only)
	RequireSignature bool   `mapstructure:"require_signature"`
	ChainID          int64  `mapstructure:"chain_id"`
	DomainName       string `mapstructure:"domain_name"`
	DomainVersion    string `mapstructure:"domain_version"`
	MaxDeadlineSkew  int    `mapstructure:"max_deadline_seconds"`
}

type ChainConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`
	CodeCacheSeconds int    `mapstructure:"code_cache_seconds"`
	TimeoutMs        int    `mapstructure:"timeout_ms"`
	Retries          int    `mapstructure:"retries"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	StateKey        string `mapstructure:"state_key"`
	NonceTTLSeconds int    `mapstructure:"nonce_ttl_seconds"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	EventRetentionDays int    `mapstructure:"event_retention_days"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type EventsConfig struct {
	Dir        string `mapstructure:"dir"`
	BufferSize int    `mapstructure:"buffer_size"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type StrategyConfig struct {
	CollateralAsset    string `mapstructure:"collateral_asset"`
	BorrowAsset        string `mapstructure:"borrow_asset"`
	CollateralFeed     string `mapstructure:"collateral_feed"`
	BorrowFeed         string `mapstructure:"borrow_feed"`
	CollateralMarket   string `mapstructure:"collateral_market"`
	BorrowMarket       string `mapstructure:"borrow_market"`
	CollateralDecimals uint8  `mapstructure:"collateral_decimals"`
	BorrowDecimals     uint8  `mapstructure:"borrow_decimals"`
}

// Decimal knobs are strings so values like "0.05" survive exactly.
type MethodologyConfig struct {
	TargetLeverageRatio string        `mapstructure:"target_leverage_ratio"`
	MinLeverageRatio    string        `mapstructure:"min_leverage_ratio"`
	MaxLeverageRatio    string        `mapstructure:"max_leverage_ratio"`
	RecenteringSpeed    string        `mapstructure:"recentering_speed"`
	RebalanceInterval   time.Duration `mapstructure:"rebalance_interval"`
}

type ExecutionConfig struct {
	UnutilizedLeveragePercentage string        `mapstructure:"unutilized_leverage_percentage"`
	SlippageTolerance            string        `mapstructure:"slippage_tolerance"`
	TwapCooldownPeriod           time.Duration `mapstructure:"twap_cooldown_period"`
}

type IncentiveConfig struct {
	IncentivizedTwapCooldownPeriod time.Duration `mapstructure:"incentivized_twap_cooldown_period"`
	IncentivizedSlippageTolerance  string        `mapstructure:"incentivized_slippage_tolerance"`
	EtherReward                    string        `mapstructure:"ether_reward"`
	IncentivizedLeverageRatio      string        `mapstructure:"incentivized_leverage_ratio"`
}

type ExchangeConfig struct {
	Name                         string `mapstructure:"name"`
	TwapMaxTradeSize             string `mapstructure:"twap_max_trade_size"`
	IncentivizedTwapMaxTradeSize string `mapstructure:"incentivized_twap_max_trade_size"`
	LeverExchangeData            string `mapstructure:"lever_exchange_data"`
	DeleverExchangeData          string `mapstructure:"delever_exchange_data"`
}

type AccessConfig struct {
	Operators      []string `mapstructure:"operators"`
	AllowedCallers []string `mapstructure:"allowed_callers"`
	AnyoneCallable bool     `mapstructure:"anyone_callable"`
	RateQPS        float64  `mapstructure:"rate_qps"`
	RateBurst      int      `mapstructure:"rate_burst"`
}

type OracleConfig struct {
	// static | websocket
	Mode        string            `mapstructure:"mode"`
	Prices      map[string]string `mapstructure:"prices"`
	WSURL       string            `mapstructure:"ws_url"`
	MaxStaleSec int               `mapstructure:"max_stale_seconds"`
}

type PaperConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollateralBalance string `mapstructure:"collateral_balance"`
	TotalSupply       string `mapstructure:"total_supply"`
	CollateralFactor  string `mapstructure:"collateral_factor"`
	BountyBalance     string `mapstructure:"bounty_balance"`
}

type KeeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Interval time.Duration `mapstructure:"interval"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// e.g. LEVERGATE_REDIS_ADDR
	viper.SetEnvPrefix("levergate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("auth.require_signature", false)
	v.SetDefault("auth.chain_id", 1)
	v.SetDefault("auth.domain_name", "Levergate")
	v.SetDefault("auth.domain_version", "1")
	v.SetDefault("auth.max_deadline_seconds", 300)
	v.SetDefault("chain.code_cache_seconds", 300)
	v.SetDefault("chain.timeout_ms", 5000)
	v.SetDefault("chain.retries", 1)
	v.SetDefault("redis.state_key", "levergate:state")
	v.SetDefault("redis.nonce_ttl_seconds", 86400)
	v.SetDefault("database.event_retention_days", 90)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("events.dir", "logs")
	v.SetDefault("events.buffer_size", 1000)
	v.SetDefault("events.max_size_mb", 100)
	v.SetDefault("events.max_backups", 10)
	v.SetDefault("log.level", "info")

	v.SetDefault("strategy.collateral_feed", "ETH")
	v.SetDefault("strategy.borrow_feed", "USDC")
	v.SetDefault("strategy.collateral_decimals", 18)
	v.SetDefault("strategy.borrow_decimals", 6)

	v.SetDefault("methodology.target_leverage_ratio", "2")
	v.SetDefault("methodology.min_leverage_ratio", "1.7")
	v.SetDefault("methodology.max_leverage_ratio", "2.3")
	v.SetDefault("methodology.recentering_speed", "0.05")
	v.SetDefault("methodology.rebalance_interval", "24h")
	v.SetDefault("execution.unutilized_leverage_percentage", "0.01")
	v.SetDefault("execution.slippage_tolerance", "0.02")
	v.SetDefault("execution.twap_cooldown_period", "3m")
	v.SetDefault("incentive.incentivized_twap_cooldown_period", "1m")
	v.SetDefault("incentive.incentivized_slippage_tolerance", "0.05")
	v.SetDefault("incentive.ether_reward", "1")
	v.SetDefault("incentive.incentivized_leverage_ratio", "2.7")

	v.SetDefault("access.rate_qps", 5)
	v.SetDefault("access.rate_burst", 10)
	v.SetDefault("oracle.mode", "static")
	v.SetDefault("oracle.max_stale_seconds", 60)
	v.SetDefault("paper.enabled", true)
	v.SetDefault("paper.collateral_factor", "0.75")
	v.SetDefault("paper.total_supply", "1")
	v.SetDefault("keeper.interval", "30s")
}

// StrategySettings converts the strategy section into model form.
func (c *Config) StrategySettings() (model.StrategySettings, error) {
	s := c.Strategy
	addrs := map[string]string{
		"strategy.collateral_asset":  s.CollateralAsset,
		"strategy.borrow_asset":      s.BorrowAsset,
		"strategy.collateral_market": s.CollateralMarket,
		"strategy.borrow_market":     s.BorrowMarket,
	}
	for key, v := range addrs {
		if v != "" && !common.IsHexAddress(v) {
			return model.StrategySettings{}, fmt.Errorf("%s: invalid address %q", key, v)
		}
	}
	return model.StrategySettings{
		CollateralAsset:    common.HexToAddress(s.CollateralAsset),
		BorrowAsset:        common.HexToAddress(s.BorrowAsset),
		CollateralFeed:     s.CollateralFeed,
		BorrowFeed:         s.BorrowFeed,
		CollateralMarket:   common.HexToAddress(s.CollateralMarket),
		BorrowMarket:       common.HexToAddress(s.BorrowMarket),
		CollateralDecimals: s.CollateralDecimals,
		BorrowDecimals:     s.BorrowDecimals,
	}, nil
}

// Settings converts the methodology, execution and incentive sections.
func (c *Config) Settings() (model.Settings, error) {
	p := &decimalParser{}
	out := model.Settings{
		Methodology: model.MethodologySettings{
			TargetLeverageRatio: p.parse("methodology.target_leverage_ratio", c.Methodology.TargetLeverageRatio),
			MinLeverageRatio:    p.parse("methodology.min_leverage_ratio", c.Methodology.MinLeverageRatio),
			MaxLeverageRatio:    p.parse("methodology.max_leverage_ratio", c.Methodology.MaxLeverageRatio),
			RecenteringSpeed:    p.parse("methodology.recentering_speed", c.Methodology.RecenteringSpeed),
			RebalanceInterval:   model.Duration(c.Methodology.RebalanceInterval),
		},
		Execution: model.ExecutionSettings{
			UnutilizedLeveragePercentage: p.parse("execution.unutilized_leverage_percentage", c.Execution.UnutilizedLeveragePercentage),
			SlippageTolerance:            p.parse("execution.slippage_tolerance", c.Execution.SlippageTolerance),
			TwapCooldownPeriod:           model.Duration(c.Execution.TwapCooldownPeriod),
		},
		Incentive: model.IncentiveSettings{
			IncentivizedTwapCooldownPeriod: model.Duration(c.Incentive.IncentivizedTwapCooldownPeriod),
			IncentivizedSlippageTolerance:  p.parse("incentive.incentivized_slippage_tolerance", c.Incentive.IncentivizedSlippageTolerance),
			EtherReward:                    p.parse("incentive.ether_reward", c.Incentive.EtherReward),
			IncentivizedLeverageRatio:      p.parse("incentive.incentivized_leverage_ratio", c.Incentive.IncentivizedLeverageRatio),
		},
	}
	return out, p.err
}

// ExchangeSettings converts the exchanges list, keeping its order.
func (c *Config) ExchangeSettings() ([]NamedExchange, error) {
	out := make([]NamedExchange, 0, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		p := &decimalParser{}
		prefix := fmt.Sprintf("exchanges[%d]", i)
		settings := model.ExchangeSettings{
			TwapMaxTradeSize:             p.parse(prefix+".twap_max_trade_size", ex.TwapMaxTradeSize),
			IncentivizedTwapMaxTradeSize: p.parse(prefix+".incentivized_twap_max_trade_size", ex.IncentivizedTwapMaxTradeSize),
		}
		if p.err != nil {
			return nil, p.err
		}
		var err error
		if settings.LeverExchangeData, err = decodeHex(ex.LeverExchangeData); err != nil {
			return nil, fmt.Errorf("%s.lever_exchange_data: %w", prefix, err)
		}
		if settings.DeleverExchangeData, err = decodeHex(ex.DeleverExchangeData); err != nil {
			return nil, fmt.Errorf("%s.delever_exchange_data: %w", prefix, err)
		}
		out = append(out, NamedExchange{Name: ex.Name, Settings: settings})
	}
	return out, nil
}

// OraclePrices resolves the static price of each feed. Viper lowercases map
// keys, so feeds are matched case-insensitively.
func (c *Config) OraclePrices(feeds ...string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(feeds))
	for _, feed := range feeds {
		raw, ok := c.Oracle.Prices[feed]
		if !ok {
			raw, ok = c.Oracle.Prices[strings.ToLower(feed)]
		}
		if !ok {
			return nil, fmt.Errorf("oracle.prices: no price for feed %q", feed)
		}
		price, err := ParseDecimal("oracle.prices."+feed, raw)
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("oracle.prices.%s: must be > 0", feed)
		}
		out[feed] = price
	}
	return out, nil
}

// NamedExchange is a venue registered at startup.
type NamedExchange struct {
	Name     string
	Settings model.ExchangeSettings
}

// ParseDecimal parses an optional decimal knob; empty means zero.
func ParseDecimal(key, raw string) (decimal.Decimal, error) {
	p := &decimalParser{}
	v := p.parse(key, raw)
	return v, p.err
}

// Addresses parses a list of hex addresses.
func Addresses(key string, raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%s: invalid address %q", key, a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

type decimalParser struct {
	err error
}

func (p *decimalParser) parse(key, raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" || p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return decimal.Zero
	}
	return d
}

func decodeHex(raw string) (hexutil.Bytes, error) {
	if raw == "" {
		return nil, nil
	}
	return hexutil.Decode(raw)
}
