package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cacheutil "backsim/internal/cache"
	"backsim/pkg/backtest"
)

// Schema (see migrations):
//
//	CREATE TABLE backtest_runs (
//	    id               BIGSERIAL PRIMARY KEY,
//	    symbol           TEXT NOT NULL,
//	    mode             TEXT NOT NULL,
//	    initial_capital  DOUBLE PRECISION NOT NULL,
//	    final_value      DOUBLE PRECISION NOT NULL,
//	    realized_pnl     DOUBLE PRECISION NOT NULL,
//	    total_pnl        DOUBLE PRECISION NOT NULL,
//	    win_rate         DOUBLE PRECISION NOT NULL,
//	    max_drawdown_pct DOUBLE PRECISION NOT NULL,
//	    sharpe           DOUBLE PRECISION NOT NULL,
//	    steps            INT NOT NULL,
//	    orders_sent      INT NOT NULL,
//	    executed         INT NOT NULL,
//	    rejected         INT NOT NULL,
//	    liquidations     INT NOT NULL,
//	    status           TEXT NOT NULL,
//	    error_message    TEXT NOT NULL DEFAULT '',
//	    equity_curve     BYTEA,
//	    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE backtest_trades (
//	    id            BIGSERIAL PRIMARY KEY,
//	    run_id        BIGINT NOT NULL REFERENCES backtest_runs(id),
//	    ts            TIMESTAMPTZ NOT NULL,
//	    symbol        TEXT NOT NULL,
//	    action        TEXT NOT NULL,
//	    quantity      NUMERIC NOT NULL,
//	    price         NUMERIC NOT NULL,
//	    leverage      NUMERIC NOT NULL,
//	    fee           NUMERIC NOT NULL,
//	    position_type TEXT NOT NULL,
//	    pnl           NUMERIC NOT NULL,
//	    margin_used   NUMERIC NOT NULL
//	);

// RunRecord is one persisted run summary.
type RunRecord struct {
	ID             int64     `db:"id"`
	Symbol         string    `db:"symbol"`
	Mode           string    `db:"mode"`
	InitialCapital float64   `db:"initial_capital"`
	FinalValue     float64   `db:"final_value"`
	RealizedPnL    float64   `db:"realized_pnl"`
	TotalPnL       float64   `db:"total_pnl"`
	WinRate        float64   `db:"win_rate"`
	MaxDrawdownPct float64   `db:"max_drawdown_pct"`
	Sharpe         float64   `db:"sharpe"`
	Steps          int       `db:"steps"`
	OrdersSent     int       `db:"orders_sent"`
	Executed       int       `db:"executed"`
	Rejected       int       `db:"rejected"`
	Liquidations   int       `db:"liquidations"`
	Status         string    `db:"status"`
	ErrorMessage   string    `db:"error_message"`
	CreatedAt      time.Time `db:"created_at"`
}

// TradeRow is one persisted fill of a run. Decimal columns come back as
// strings to avoid binary float rounding on money values.
type TradeRow struct {
	ID           int64     `db:"id"`
	RunID        int64     `db:"run_id"`
	Ts           time.Time `db:"ts"`
	Symbol       string    `db:"symbol"`
	Action       string    `db:"action"`
	Quantity     string    `db:"quantity"`
	Price        string    `db:"price"`
	Leverage     string    `db:"leverage"`
	Fee          string    `db:"fee"`
	PositionType string    `db:"position_type"`
	PnL          string    `db:"pnl"`
	MarginUsed   string    `db:"margin_used"`
}

// EquityPoint is one valuation sample of a run's equity curve. The curve is
// stored msgpack-encoded in a single bytea column; runs retain thousands of
// samples and row-per-sample storage is not worth it for replay data.
type EquityPoint struct {
	TsMs  int64   `msgpack:"ts"`
	Value float64 `msgpack:"v"`
}

// RunsRepo persists completed simulation runs and serves recent run queries.
type RunsRepo interface {
	// Save stores a run summary plus its equity curve and returns the row ID.
	Save(ctx context.Context, res *backtest.Result) (int64, error)
	// Recent returns run summaries ordered by creation time descending.
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	// Trades returns the persisted fills of one run in execution order.
	Trades(ctx context.Context, runID int64) ([]TradeRow, error)
	// EquityCurve returns the decoded equity samples of one run.
	EquityCurve(ctx context.Context, runID int64) ([]EquityPoint, error)
}

type runsRepo struct {
	deps Dependencies
}

func newRunsRepo(deps Dependencies) RunsRepo {
	return &runsRepo{deps: deps}
}

// helper: get from redis into v
func (r *runsRepo) getCache(ctx context.Context, key string, v interface{}) bool {
	if r.deps.Cache == nil {
		return false
	}
	if err := r.deps.Cache.GetCtx(ctx, key, v); err != nil {
		if !r.deps.Cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("get cache %s: %v", key, err)
		}
		return false
	}
	return true
}

// helper: set redis from v
func (r *runsRepo) setCache(ctx context.Context, key string, ttl time.Duration, v interface{}) {
	if r.deps.Cache == nil || ttl <= 0 {
		return
	}
	if err := r.deps.Cache.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("set cache %s: %v", key, err)
	}
}

func (r *runsRepo) Save(ctx context.Context, res *backtest.Result) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("repo: nil result")
	}

	points := EquityPoints(res)
	blob, err := msgpack.Marshal(points)
	if err != nil {
		return 0, fmt.Errorf("repo: encode equity curve: %w", err)
	}

	const insertRun = `
INSERT INTO backtest_runs (
    symbol, mode, initial_capital, final_value, realized_pnl, total_pnl,
    win_rate, max_drawdown_pct, sharpe, steps, orders_sent, executed,
    rejected, liquidations, status, error_message, equity_curve
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING id`

	const insertTrade = `
INSERT INTO backtest_trades (
    run_id, ts, symbol, action, quantity, price, leverage, fee,
    position_type, pnl, margin_used
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	var id int64
	err = r.deps.DBConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if err := session.QueryRowCtx(ctx, &id, insertRun,
			res.Config.Symbol, res.Config.Mode, res.Config.InitialCapital,
			res.Metrics.FinalValue, res.Metrics.RealizedPnL, res.Metrics.TotalPnL,
			res.Metrics.WinRate, res.Metrics.MaxDrawdownPct, res.Metrics.Sharpe,
			res.Steps, res.OrdersSent, res.Executed, res.Rejected, res.Liquidations,
			res.Status, res.ErrorMessage, blob,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, tr := range res.Trades {
			if _, err := session.ExecCtx(ctx, insertTrade,
				id, tr.Timestamp, tr.Symbol.String(), tr.Action.String(),
				tr.Quantity.String(), tr.Price.String(), tr.Leverage.String(),
				tr.Fee.String(), tr.Type.String(), tr.PnL.String(),
				tr.MarginUsed.String(),
			); err != nil {
				return fmt.Errorf("insert trade: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("repo: save run: %w", err)
	}

	// The recent listing is stale the moment a run lands.
	if r.deps.Cache != nil {
		if err := r.deps.Cache.DelCtx(ctx, cacheutil.RunsRecentKey()); err != nil {
			logx.WithContext(ctx).Errorf("invalidate recent runs: %v", err)
		}
	}
	r.setCache(ctx, cacheutil.EquityCurveKey(id), cacheutil.EquityCurveTTL(r.deps.TTL), points)
	return id, nil
}

func (r *runsRepo) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	key := cacheutil.RunsRecentKey()
	var cached []RunRecord
	if r.getCache(ctx, key, &cached) && len(cached) >= limit {
		return cached[:limit], nil
	}

	const q = `
SELECT id, symbol, mode, initial_capital, final_value, realized_pnl, total_pnl,
       win_rate, max_drawdown_pct, sharpe, steps, orders_sent, executed,
       rejected, liquidations, status, error_message, created_at
FROM backtest_runs
ORDER BY created_at DESC, id DESC
LIMIT $1`

	var rows []RunRecord
	if err := r.deps.DBConn.QueryRowsCtx(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("repo: recent runs: %w", err)
	}
	r.setCache(ctx, key, cacheutil.RunsRecentTTL(r.deps.TTL), rows)
	return rows, nil
}

func (r *runsRepo) Trades(ctx context.Context, runID int64) ([]TradeRow, error) {
	const q = `
SELECT id, run_id, ts, symbol, action, quantity::text, price::text,
       leverage::text, fee::text, position_type, pnl::text, margin_used::text
FROM backtest_trades
WHERE run_id = $1
ORDER BY ts ASC, id ASC`

	var rows []TradeRow
	if err := r.deps.DBConn.QueryRowsCtx(ctx, &rows, q, runID); err != nil {
		return nil, fmt.Errorf("repo: trades for run %d: %w", runID, err)
	}
	return rows, nil
}

func (r *runsRepo) EquityCurve(ctx context.Context, runID int64) ([]EquityPoint, error) {
	key := cacheutil.EquityCurveKey(runID)
	var cached []EquityPoint
	if r.getCache(ctx, key, &cached) {
		return cached, nil
	}

	const q = `SELECT equity_curve FROM backtest_runs WHERE id = $1`
	var blob []byte
	if err := r.deps.DBConn.QueryRowCtx(ctx, &blob, q, runID); err != nil {
		return nil, fmt.Errorf("repo: equity curve for run %d: %w", runID, err)
	}

	var points []EquityPoint
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &points); err != nil {
			return nil, fmt.Errorf("repo: decode equity curve for run %d: %w", runID, err)
		}
	}
	r.setCache(ctx, key, cacheutil.EquityCurveTTL(r.deps.TTL), points)
	return points, nil
}

// EquityPoints flattens a run's valuation history into storable samples.
func EquityPoints(res *backtest.Result) []EquityPoint {
	points := make([]EquityPoint, 0, len(res.History))
	for _, snap := range res.History {
		points = append(points, EquityPoint{
			TsMs:  snap.Timestamp.UnixMilli(),
			Value: snap.PortfolioValue.InexactFloat64(),
		})
	}
	return points
}
