package repo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/pkg/backtest"
	"backsim/pkg/portfolio"
)

func TestNew_RequiresDBConn(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err, "repo set needs a database connection")
}

func TestEquityPoints_FlattensHistory(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &backtest.Result{
		History: []portfolio.Snapshot{
			{Timestamp: t0, PortfolioValue: decimal.NewFromInt(10000)},
			{Timestamp: t0.Add(time.Minute), PortfolioValue: decimal.NewFromFloat(10052.5)},
		},
	}

	points := EquityPoints(res)
	require.Len(t, points, 2)
	assert.Equal(t, t0.UnixMilli(), points[0].TsMs)
	assert.Equal(t, 10000.0, points[0].Value)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), points[1].TsMs)
	assert.InDelta(t, 10052.5, points[1].Value, 1e-9)
}
