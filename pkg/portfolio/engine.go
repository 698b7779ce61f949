package portfolio

// Engine bundles one ledger with its trading, metrics and risk views. Each
// backtest run constructs its own Engine; nothing here is shared across runs.
type Engine struct {
	Core    *Core
	Metrics *Metrics
	Trading *Trading
	Risk    *Risk

	cfg *Config
}

// NewEngine builds a fully wired simulation account from configuration.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	core, err := NewCore(cfg)
	if err != nil {
		return nil, err
	}
	risk := NewRisk(core, cfg)
	return &Engine{
		Core:    core,
		Metrics: NewMetrics(core),
		Trading: NewTrading(core, risk, cfg),
		Risk:    risk,
		cfg:     cfg,
	}, nil
}

// Config returns the tunables the engine was built with.
func (e *Engine) Config() *Config { return e.cfg }
