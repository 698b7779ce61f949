package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The engine is driven synchronously in a backtest, but the ledger lock must
// keep concurrent external callers from interleaving mid-mutation.
func TestTrading_ConcurrentRoundTrips(t *testing.T) {
	cfg := testConfig(ModeFutures, 1000000)
	cfg.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	eng := newTestEngine(t, cfg)

	const trips = 25
	symbols := []Symbol{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	now := time.Now()

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym Symbol) {
			defer wg.Done()
			for i := 0; i < trips; i++ {
				if _, _, err := eng.Trading.Buy(sym, d(1), d(100), d(1), now); err != nil {
					t.Errorf("buy %s: %v", sym, err)
					return
				}
				if _, _, err := eng.Trading.Sell(sym, d(1), d(100), d(1), now); err != nil {
					t.Errorf("sell %s: %v", sym, err)
					return
				}
			}
		}(sym)
	}
	wg.Wait()

	require.Equal(t, 0, eng.Core.PositionCount(), "every round trip should flatten its symbol")
	// Each close charges 0.05 on the 100 notional; opens debit margin that the
	// close fully releases.
	expected := d(1000000).Sub(d(0.05).Mul(d(float64(trips * len(symbols)))))
	assert.True(t, eng.Core.Cash().Equal(expected), "cash reflects exactly the fees paid")
	assert.True(t, eng.Core.Cash().Sign() > 0, "cash never goes negative")
}
