package portfolio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the fixed tunables of one simulated account. Values are plain
// yaml scalars; they are converted to decimals once at engine construction.
// Tunables are not runtime-reloadable.
type Config struct {
	Mode                  string  `yaml:"mode"`
	InitialCapital        float64 `yaml:"initial_capital"`
	TakerFeeRate          float64 `yaml:"taker_fee_rate"`
	MaintenanceMarginRate float64 `yaml:"maintenance_margin_rate"`
	MarginCallThreshold   float64 `yaml:"margin_call_threshold"`
	MinTradeSize          float64 `yaml:"min_trade_size"`
	MaxTradeSize          float64 `yaml:"max_trade_size"`
	MaxPositions          int     `yaml:"max_positions"`
	MaxTradesHistory      int     `yaml:"max_trades_history"`
	MaxPortfolioHistory   int     `yaml:"max_portfolio_history"`
	HistoryRetain         int     `yaml:"history_retain"`

	Symbols []string `yaml:"symbols"`
}

// DefaultConfig returns the tunables used when a field is left unset.
func DefaultConfig() *Config {
	return &Config{
		Mode:                  string(ModeFutures),
		InitialCapital:        10000,
		TakerFeeRate:          0.0005,
		MaintenanceMarginRate: 0.005,
		MarginCallThreshold:   0.5,
		MinTradeSize:          0.0001,
		MaxTradeSize:          1000,
		MaxPositions:          10,
		MaxTradesHistory:      1000,
		MaxPortfolioHistory:   10000,
		HistoryRetain:         5000,
		Symbols: []string{
			"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT", "DOGEUSDT",
		},
	}
}

// LoadConfig reads an engine configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open portfolio config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader. Environment
// placeholders are expanded, then defaults are applied and the result
// validated.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read portfolio config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal portfolio config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = def.InitialCapital
	}
	if c.TakerFeeRate == 0 {
		c.TakerFeeRate = def.TakerFeeRate
	}
	if c.MaintenanceMarginRate == 0 {
		c.MaintenanceMarginRate = def.MaintenanceMarginRate
	}
	if c.MarginCallThreshold == 0 {
		c.MarginCallThreshold = def.MarginCallThreshold
	}
	if c.MinTradeSize == 0 {
		c.MinTradeSize = def.MinTradeSize
	}
	if c.MaxTradeSize == 0 {
		c.MaxTradeSize = def.MaxTradeSize
	}
	if c.MaxPositions == 0 {
		c.MaxPositions = def.MaxPositions
	}
	if c.MaxTradesHistory == 0 {
		c.MaxTradesHistory = def.MaxTradesHistory
	}
	if c.MaxPortfolioHistory == 0 {
		c.MaxPortfolioHistory = def.MaxPortfolioHistory
	}
	if c.HistoryRetain == 0 {
		c.HistoryRetain = def.HistoryRetain
	}
	if len(c.Symbols) == 0 {
		c.Symbols = append(c.Symbols, def.Symbols...)
	}
}

// Validate rejects configurations that would break ledger invariants.
func (c *Config) Validate() error {
	if _, err := ParseTradingMode(c.Mode); err != nil {
		return err
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("portfolio config: initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.TakerFeeRate < 0 {
		return fmt.Errorf("portfolio config: taker_fee_rate must be non-negative, got %v", c.TakerFeeRate)
	}
	if c.MaintenanceMarginRate < 0 || c.MaintenanceMarginRate >= 1 {
		return fmt.Errorf("portfolio config: maintenance_margin_rate must be in [0, 1), got %v", c.MaintenanceMarginRate)
	}
	if c.MarginCallThreshold <= 0 {
		return fmt.Errorf("portfolio config: margin_call_threshold must be positive, got %v", c.MarginCallThreshold)
	}
	if c.MinTradeSize <= 0 || c.MaxTradeSize <= 0 || c.MinTradeSize > c.MaxTradeSize {
		return fmt.Errorf("portfolio config: trade size bounds [%v, %v] are invalid", c.MinTradeSize, c.MaxTradeSize)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("portfolio config: max_positions must be positive, got %d", c.MaxPositions)
	}
	if c.MaxTradesHistory <= 0 {
		return fmt.Errorf("portfolio config: max_trades_history must be positive, got %d", c.MaxTradesHistory)
	}
	if c.MaxPortfolioHistory <= 0 {
		return fmt.Errorf("portfolio config: max_portfolio_history must be positive, got %d", c.MaxPortfolioHistory)
	}
	if c.HistoryRetain <= 0 || c.HistoryRetain > c.MaxPortfolioHistory {
		return fmt.Errorf("portfolio config: history_retain %d must be in (0, max_portfolio_history]", c.HistoryRetain)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("portfolio config: at least one symbol is required")
	}
	return nil
}

// TradingMode returns the parsed mode. Validate must have accepted the config.
func (c *Config) TradingMode() TradingMode {
	m, _ := ParseTradingMode(c.Mode)
	return m
}

// SymbolSet returns the canonical supported-pair set.
func (c *Config) SymbolSet() map[Symbol]struct{} {
	set := make(map[Symbol]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		set[CanonicalSymbol(s)] = struct{}{}
	}
	return set
}
