package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	return eng
}

func TestTrading_OpenLong_Futures(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	trade, executed, err := eng.Trading.Buy("BTCUSDT", d(1), d(50000), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)

	assert.True(t, eng.Core.Cash().Equal(d(5000)), "cash debited by margin only")
	pos, ok := eng.Core.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, Long, pos.Type)
	assert.True(t, pos.Size.Equal(d(1)))
	assert.True(t, pos.EntryPrice.Equal(d(50000)))
	assert.True(t, pos.MarginUsed.Equal(d(5000)))

	assert.Equal(t, ActionBuy, trade.Action)
	assert.True(t, trade.PnL.IsZero(), "pure opens carry no realized PnL")
	assert.True(t, trade.MarginUsed.Equal(d(5000)), "opening trade records the committed margin")
	assert.True(t, trade.Fee.Equal(d(25)), "taker fee on the 50000 notional")
}

func TestTrading_CloseLong_RealizesPnL(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("BTCUSDT", d(1), d(50000), d(10), now)
	require.NoError(t, err)

	realized, err := eng.Risk.ClosePositionAtPrice("BTCUSDT", d(55000), d(27.5), now)
	require.NoError(t, err)

	assert.True(t, realized.Equal(d(4972.5)), "realized is unrealized minus fee")
	assert.True(t, eng.Core.Cash().Equal(d(14972.5)), "cash credited with margin plus realized")
	assert.Equal(t, 0, eng.Core.PositionCount(), "fully closed positions are removed, not zeroed")
}

func TestTrading_InsufficientFunds_Spot(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeSpot, 1000))

	_, executed, err := eng.Trading.Buy("BTCUSDT", d(1), d(50000), d(1), time.Now())
	assert.False(t, executed)

	var ife *InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Required.Equal(d(50000)))
	assert.True(t, ife.Available.Equal(d(1000)))
	assert.Equal(t, 0, eng.Core.PositionCount(), "nothing mutates on failure")
	assert.Empty(t, eng.Core.Trades(), "no trade recorded on failure")
}

func TestTrading_SpotShort_PolicyRejection(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeSpot, 10000))

	trade, executed, err := eng.Trading.Sell("BTCUSDT", d(1), d(50000), d(1), time.Now())
	assert.NoError(t, err, "policy rejections are not errors")
	assert.False(t, executed)
	assert.Nil(t, trade)
	assert.Equal(t, 0, eng.Core.PositionCount())
	assert.Empty(t, eng.Core.Trades())
}

func TestTrading_SpotOverSell_PolicyRejection(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeSpot, 10000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("BTCUSDT", d(0.1), d(50000), d(1), now)
	require.NoError(t, err)

	_, executed, err := eng.Trading.Sell("BTCUSDT", d(0.2), d(50000), d(1), now)
	assert.NoError(t, err)
	assert.False(t, executed, "cannot sell more than is held in spot mode")

	pos, ok := eng.Core.Position("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d(0.1)), "the held position is untouched")
}

func TestTrading_AveragingLaw(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 100000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("BTCUSDT", d(1), d(50000), d(10), now)
	require.NoError(t, err)
	_, _, err = eng.Trading.Buy("BTCUSDT", d(3), d(54000), d(10), now)
	require.NoError(t, err)

	pos, ok := eng.Core.Position("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d(4)))
	// (1*50000 + 3*54000) / 4 = 53000, exactly.
	assert.True(t, pos.EntryPrice.Equal(d(53000)), "entry is the size-weighted average")
	assert.True(t, pos.MarginUsed.Equal(d(21200)), "margin grows by the addition's margin")
	assert.True(t, eng.Core.Cash().Equal(d(78800)))
}

func TestTrading_PartialClose_ProRata(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 100000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("BTCUSDT", d(2), d(50000), d(10), now)
	require.NoError(t, err)
	// cash 90000, margin 10000

	trade, executed, err := eng.Trading.Sell("BTCUSDT", d(1), d(52000), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)

	// Closing half: pnl share 2000, fee 26 on the 52000 closed notional,
	// margin release 5000.
	assert.True(t, trade.PnL.Equal(d(1974)), "pro-rata PnL minus fee")
	assert.Equal(t, ActionSell, trade.Action)
	assert.True(t, trade.MarginUsed.IsZero(), "pure closes commit no margin")

	pos, ok := eng.Core.Position("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d(1)), "size shrinks by the closed amount")
	assert.True(t, pos.MarginUsed.Equal(d(5000)), "margin shrinks by the same fraction")
	assert.True(t, pos.EntryPrice.Equal(d(50000)), "entry price is unchanged by a partial close")
	assert.True(t, eng.Core.Cash().Equal(d(96974)), "cash credited with released margin plus PnL")
}

func TestTrading_ShortLifecycle(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	trade, executed, err := eng.Trading.Sell("ETHUSDT", d(2), d(3000), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, ActionSell, trade.Action)
	assert.Equal(t, Short, trade.Type)
	assert.True(t, eng.Core.Cash().Equal(d(9400)), "600 margin committed")

	// Add to the short at a lower price.
	_, executed, err = eng.Trading.Sell("ETHUSDT", d(2), d(2900), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)
	pos, ok := eng.Core.Position("ETHUSDT")
	require.True(t, ok)
	assert.True(t, pos.EntryPrice.Equal(d(2950)), "short averaging mirrors long averaging")
	assert.True(t, pos.Size.Equal(d(4)))

	// Buy covers the short entirely.
	cover, executed, err := eng.Trading.Buy("ETHUSDT", d(4), d(2800), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)
	assert.Equal(t, ActionBuy, cover.Action, "covering a short is a buy")
	// pnl = (2950-2800)*4 - fee(4*2800*0.0005 = 5.6) = 600 - 5.6
	assert.True(t, cover.PnL.Equal(d(594.4)))
	assert.Equal(t, 0, eng.Core.PositionCount())
}

func TestTrading_BuyCoversShortPartially(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	_, _, err := eng.Trading.Sell("ETHUSDT", d(4), d(3000), d(10), now)
	require.NoError(t, err)

	trade, executed, err := eng.Trading.Buy("ETHUSDT", d(1), d(2900), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)

	// Quarter of the short: pnl share 100, fee 1.45 on the closed notional.
	assert.True(t, trade.PnL.Equal(d(98.55)))
	pos, ok := eng.Core.Position("ETHUSDT")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d(3)))
	assert.True(t, pos.MarginUsed.Equal(d(900)), "three quarters of the 1200 margin remains")
}

func TestTrading_RoundTripCostsOnlyFees(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("BTCUSDT", d(1), d(50000), d(10), now)
	require.NoError(t, err)
	trade, executed, err := eng.Trading.Sell("BTCUSDT", d(1), d(50000), d(10), now)
	require.NoError(t, err)
	require.True(t, executed)

	assert.True(t, trade.PnL.Equal(d(-25)), "same-price round trip loses exactly the close-side fee")
	assert.True(t, eng.Core.RealizedPnL().Equal(d(-25)),
		"no numeric drift from the open/close arithmetic itself")
	assert.True(t, eng.Core.Cash().Equal(d(9975)))
}

func TestTrading_PnLSymmetry(t *testing.T) {
	now := time.Now()

	long := newTestEngine(t, testConfig(ModeFutures, 100000))
	_, _, err := long.Trading.Buy("BTCUSDT", d(2), d(50000), d(10), now)
	require.NoError(t, err)
	closed, _, err := long.Trading.Sell("BTCUSDT", d(2), d(53000), d(10), now)
	require.NoError(t, err)
	// (53000-50000)*2 - 53 close fee
	assert.True(t, closed.PnL.Equal(d(5947)))

	short := newTestEngine(t, testConfig(ModeFutures, 100000))
	_, _, err = short.Trading.Sell("BTCUSDT", d(2), d(53000), d(10), now)
	require.NoError(t, err)
	covered, _, err := short.Trading.Buy("BTCUSDT", d(2), d(50000), d(10), now)
	require.NoError(t, err)
	// (53000-50000)*2 - 50 close fee
	assert.True(t, covered.PnL.Equal(d(5950)))
}

func TestTrading_Validation(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeFutures, 10000))
	now := time.Now()

	_, _, err := eng.Trading.Buy("ABCUSDT", d(1), d(100), d(10), now)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr, "unsupported symbols are rejected")

	_, _, err = eng.Trading.Buy("BTCUSDT", d(0), d(100), d(10), now)
	assert.ErrorAs(t, err, &verr, "non-positive amount is rejected")

	_, _, err = eng.Trading.Buy("BTCUSDT", d(1), d(-5), d(10), now)
	assert.ErrorAs(t, err, &verr, "non-positive price is rejected")

	_, _, err = eng.Trading.Buy("BTCUSDT", d(2000), d(100), d(10), now)
	assert.ErrorAs(t, err, &verr, "amount above the trade size bound is rejected")

	_, _, err = eng.Trading.Buy("BTCUSDT", d(1), d(100), d(200), now)
	var lerr *InvalidLeverageError
	require.ErrorAs(t, err, &lerr, "leverage above the futures cap is rejected")
	assert.Equal(t, ModeFutures, lerr.Mode)
	assert.True(t, lerr.Max.Equal(d(125)))
}

func TestTrading_SpotLeverageBound(t *testing.T) {
	eng := newTestEngine(t, testConfig(ModeSpot, 10000))

	_, _, err := eng.Trading.Buy("BTCUSDT", d(0.01), d(50000), d(5), time.Now())
	var lerr *InvalidLeverageError
	require.ErrorAs(t, err, &lerr, "spot only permits 1x")
}
