package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"backsim/internal/cli"
	"backsim/internal/config"
	"backsim/internal/svc"
	"backsim/pkg/backtest"
	"backsim/pkg/journal"
	"backsim/pkg/portfolio"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configFile = flag.String("f", "etc/backsim.yaml", "application config file")
		dataFile   = flag.String("data", "", "csv kline file (overrides config)")
		pricesRaw  = flag.String("prices", "", "inline close series, e.g. 100,101,99.5")
		outputPath = flag.String("out", "", "write the run report to this path")
		journalDir = flag.String("journal", "", "append a run record to this journal directory")
		save       = flag.Bool("save", false, "persist the run to postgres")
	)
	flag.Parse()

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"}
		if err := defaults(appCfg); err != nil {
			log.Fatalf("[main] default configuration invalid: %v", err)
		}
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg)

	account, err := portfolio.NewEngine(svcCtx.PortfolioConfig)
	if err != nil {
		log.Fatalf("[main] Failed to build simulation account: %v", err)
	}

	feeder, err := buildFeeder(appCfg, *dataFile, *pricesRaw)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	out := *outputPath
	if out == "" {
		out = appCfg.Backtest.OutputPath
	}

	engine := &backtest.Engine{
		Feeder: feeder,
		Strategy: &backtest.ThresholdStrategy{
			ThresholdP: appCfg.Backtest.ThresholdPct,
			Amount:     appCfg.Backtest.OrderSize,
			Leverage:   appCfg.Backtest.Leverage,
		},
		Account:    account,
		Symbol:     appCfg.Backtest.Symbol,
		OutputPath: out,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("[main] Backtest failed: %v", err)
	}
	printSummary(res)

	if *journalDir != "" {
		path, err := journal.NewWriter(*journalDir).WriteRun(runRecord(res))
		if err != nil {
			log.Fatalf("[main] Failed to journal run: %v", err)
		}
		log.Printf("[main] Run journaled to %s", path)
	}

	if *save {
		if !svcCtx.CanPersist() {
			log.Fatalf("[main] -save requires a configured postgres DSN")
		}
		id, err := svcCtx.Repos.Runs.Save(ctx, res)
		if err != nil {
			log.Fatalf("[main] Failed to persist run: %v", err)
		}
		log.Printf("[main] Run persisted with id %d", id)
	}
}

// defaults fills a hand-built fallback config the way conf.Load would.
func defaults(cfg *config.Config) error {
	cfg.TTL = config.CacheTTL{Short: 10, Medium: 60, Long: 300}
	cfg.Backtest = config.BacktestConf{Symbol: "BTCUSDT", ThresholdPct: 1.0, OrderSize: 0.01, Leverage: 1}
	return cfg.Validate()
}

func buildFeeder(cfg *config.Config, dataFile, pricesRaw string) (backtest.Feeder, error) {
	if pricesRaw != "" {
		prices, err := parsePrices(pricesRaw)
		if err != nil {
			return nil, err
		}
		return backtest.NewPriceFeeder(cfg.Backtest.Symbol, prices), nil
	}
	path := dataFile
	if path == "" {
		path = cfg.Backtest.DataFile
	}
	if path == "" {
		return nil, fmt.Errorf("no market data: set backtest.dataFile or pass -data/-prices")
	}
	return backtest.NewCSVKlineFeeder(cfg.Backtest.Symbol, path)
}

func parsePrices(raw string) ([]float64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	prices := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", field, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("price %q must be positive", field)
		}
		prices = append(prices, v)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("empty price series")
	}
	return prices, nil
}

func runRecord(res *backtest.Result) *journal.RunRecord {
	return &journal.RunRecord{
		Symbol:       res.Config.Symbol,
		Mode:         res.Config.Mode,
		Steps:        res.Steps,
		OrdersSent:   res.OrdersSent,
		Executed:     res.Executed,
		Rejected:     res.Rejected,
		Liquidations: res.Liquidations,
		Success:      res.Status == backtest.StatusCompleted,
		ErrorMessage: res.ErrorMessage,
		Metrics: map[string]any{
			"realized_pnl":     res.Metrics.RealizedPnL,
			"unrealized_pnl":   res.Metrics.UnrealizedPnL,
			"total_pnl":        res.Metrics.TotalPnL,
			"final_value":      res.Metrics.FinalValue,
			"win_rate":         res.Metrics.WinRate,
			"max_drawdown_pct": res.Metrics.MaxDrawdownPct,
			"sharpe":           res.Metrics.Sharpe,
		},
	}
}

func printSummary(res *backtest.Result) {
	log.Printf("[main] Backtest %s over %d bars (%s %s)",
		res.Status, res.Steps, res.Config.Symbol, res.Config.Mode)
	log.Printf("  - Orders: %d sent, %d executed, %d rejected, %d liquidations",
		res.OrdersSent, res.Executed, res.Rejected, res.Liquidations)
	log.Printf("  - PnL: realized %.2f, unrealized %.2f, total %.2f",
		res.Metrics.RealizedPnL, res.Metrics.UnrealizedPnL, res.Metrics.TotalPnL)
	log.Printf("  - Final value: %.2f (win rate %.1f%%, closed trades %d)",
		res.Metrics.FinalValue, res.Metrics.WinRate*100, res.Metrics.ClosedTrades)
	log.Printf("  - Max drawdown: %.2f%%, Sharpe: %.2f",
		res.Metrics.MaxDrawdownPct, res.Metrics.Sharpe)
}
