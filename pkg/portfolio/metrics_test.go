package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PortfolioValue_ByMode(t *testing.T) {
	prices := PriceMap{"BTCUSDT": d(51000)}

	futures, err := NewCore(testConfig(ModeFutures, 10000))
	require.NoError(t, err)
	require.NoError(t, futures.AddPosition(mustPosition(t, "BTCUSDT", 1, 50000, 10, 5000, Long)))
	assert.True(t, NewMetrics(futures).PortfolioValue(prices).Equal(d(6000)),
		"futures equity is cash plus unrealized PnL, not notional")

	spot, err := NewCore(testConfig(ModeSpot, 60000))
	require.NoError(t, err)
	require.NoError(t, spot.AddPosition(mustPosition(t, "BTCUSDT", 1, 50000, 1, 50000, Long)))
	assert.True(t, NewMetrics(spot).PortfolioValue(prices).Equal(d(61000)),
		"spot values positions as owned assets")
}

func TestMetrics_PortfolioValue_SkipsUnknownPrices(t *testing.T) {
	core, err := NewCore(testConfig(ModeMargin, 10000))
	require.NoError(t, err)
	require.NoError(t, core.AddPosition(mustPosition(t, "BTCUSDT", 1, 5000, 5, 1000, Long)))

	value := NewMetrics(core).PortfolioValue(PriceMap{"ETHUSDT": d(3000)})
	assert.True(t, value.Equal(d(9000)), "positions without a price entry contribute nothing")
}

func TestMetrics_MarginRatio(t *testing.T) {
	core, err := NewCore(testConfig(ModeFutures, 10000))
	require.NoError(t, err)
	m := NewMetrics(core)

	_, infinite := m.MarginRatio(PriceMap{})
	assert.True(t, infinite, "no margin in use means no measurable risk")
	assert.False(t, m.IsMarginCall(PriceMap{}, d(0.5)), "infinite ratio is never a margin call")

	require.NoError(t, core.AddPosition(mustPosition(t, "BTCUSDT", 1, 50000, 10, 5000, Long)))

	ratio, infinite := m.MarginRatio(PriceMap{"BTCUSDT": d(50000)})
	require.False(t, infinite)
	assert.True(t, ratio.Equal(d(1)), "equity 5000 over margin 5000 at entry")

	ratio, _ = m.MarginRatio(PriceMap{"BTCUSDT": d(48000)})
	assert.True(t, ratio.Equal(d(0.6)), "equity is cash plus unrealized, not the mode valuation")
	assert.False(t, m.IsMarginCall(PriceMap{"BTCUSDT": d(48000)}, d(0.5)))

	assert.True(t, m.IsMarginCall(PriceMap{"BTCUSDT": d(47500)}, d(0.5)),
		"ratio equal to the threshold is already a margin call")
}

func TestMetrics_CapitalMarginRatio(t *testing.T) {
	spot, err := NewCore(testConfig(ModeSpot, 10000))
	require.NoError(t, err)
	require.NoError(t, spot.AddPosition(mustPosition(t, "BTCUSDT", 1, 5000, 1, 5000, Long)))
	assert.True(t, NewMetrics(spot).CapitalMarginRatio().IsZero(), "spot reports zero")

	futures, err := NewCore(testConfig(ModeFutures, 10000))
	require.NoError(t, err)
	require.NoError(t, futures.AddPosition(mustPosition(t, "BTCUSDT", 1, 50000, 10, 5000, Long)))
	assert.True(t, NewMetrics(futures).CapitalMarginRatio().Equal(d(0.5)),
		"leveraged modes report used margin over initial capital")
}
