package sim

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOrders(n int, qty int64, profit float64) []Order {
	orders := make([]Order, n)
	for i := range orders {
		orders[i] = Order{
			ID:         fmt.Sprintf("o%d", i),
			Quantity:   qty,
			UnitPrice:  10,
			BaseProfit: decimal.NewFromFloat(profit),
		}
	}
	return orders
}

// fixedConfig has a single delivery mode and a fixed delay so outcomes are deterministic.
func fixedConfig(stock, delay int64, returnPct float64) Config {
	cfg := DefaultConfig()
	cfg.InitialStock = stock
	cfg.DelayMinDays = delay
	cfg.DelayMaxDays = delay
	cfg.ReturnRatePct = returnPct
	cfg.DeliveryMix = []DeliveryOption{{Type: DeliveryStandard, Weight: 1, Multiplier: 1}}
	return cfg
}

func TestSimulate_InsufficientStock_RecordsStockout(t *testing.T) {
	// GIVEN 10 units of stock and four orders of 3 units each
	cfg := fixedConfig(10, 4, 0)

	// WHEN the simulation runs
	m, err := Simulate(cfg, makeOrders(4, 3, 10))
	require.NoError(t, err)

	// THEN the first three ship and the fourth stocks out
	require.Len(t, m.Records, 4)
	for i, want := range []OrderStatus{StatusDelivered, StatusDelivered, StatusDelivered, StatusStockout} {
		assert.Equal(t, want, m.Records[i].Status, "record %d", i)
	}
	assert.Equal(t, 1, m.Stockouts)
	assert.Equal(t, int64(9), m.TotalStockUsed)
	assert.Equal(t, int64(1), m.CurrentStock)
	assert.True(t, decimal.NewFromInt(30).Equal(m.CumulativeProfit), "profit = %s", m.CumulativeProfit)
	assert.Equal(t, map[int64]int64{4: 1}, m.StockLevels)

	last := m.Records[3]
	assert.True(t, last.Profit.IsZero())
	assert.Equal(t, int64(0), last.StockUsed)
	assert.True(t, last.HoldingCost.IsZero())
	assert.True(t, decimal.NewFromFloat(2.4).Equal(m.Records[0].HoldingCost), "holding = %s", m.Records[0].HoldingCost)

	k := m.KPIs()
	assert.InDelta(t, 75.0, k.DeliveredPct, 1e-9)
	assert.InDelta(t, 0.0, k.ReturnedPct, 1e-9)
	assert.Equal(t, 0, k.InTransit)
}

func TestSimulate_AllReturned_ProfitIsNegated(t *testing.T) {
	// GIVEN a 100% return rate and one loss-making order
	cfg := fixedConfig(100, 2, 100)
	orders := makeOrders(2, 1, 10)
	orders[1].BaseProfit = decimal.NewFromInt(-5)

	m, err := Simulate(cfg, orders)
	require.NoError(t, err)

	// THEN every order is returned with a non-positive profit and stock is still consumed
	assert.Equal(t, 2, m.Returned)
	assert.Equal(t, 0, m.Delivered)
	assert.True(t, decimal.NewFromInt(-10).Equal(m.Records[0].Profit))
	assert.True(t, decimal.NewFromInt(-5).Equal(m.Records[1].Profit))
	assert.True(t, decimal.NewFromInt(-15).Equal(m.CumulativeProfit))
	assert.Equal(t, int64(98), m.CurrentStock)
	assert.InDelta(t, 100.0, m.KPIs().ReturnedPct, 1e-9)
}

func TestSimulate_StockoutIsNeverReturned(t *testing.T) {
	cfg := fixedConfig(0, 1, 100)
	m, err := Simulate(cfg, makeOrders(3, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Stockouts)
	assert.Equal(t, 0, m.Returned)
	assert.True(t, m.CumulativeProfit.IsZero())
}

func TestSimulate_SlowerMode_AppliesDelayPenalty(t *testing.T) {
	// GIVEN a delivery mode that stretches a 4-day delay to 6 days
	cfg := fixedConfig(100, 4, 0)
	cfg.DeliveryMix = []DeliveryOption{{Type: "Freight", Weight: 1, Multiplier: 1.5}}

	m, err := Simulate(cfg, makeOrders(1, 1, 25))
	require.NoError(t, err)

	// THEN the order lands on day 6 with 2 late days at 5/day deducted
	require.Len(t, m.Records, 1)
	assert.Equal(t, int64(6), m.Records[0].SimTime)
	assert.Equal(t, int64(6), m.Records[0].DelayDays)
	assert.True(t, decimal.NewFromInt(15).Equal(m.Records[0].Profit), "profit = %s", m.Records[0].Profit)
}

func TestSimulate_SameDayZeroDelay_DeliversAfterAllPlacements(t *testing.T) {
	// GIVEN a 1-day base delay halved to 0 days
	cfg := fixedConfig(100, 1, 0)
	cfg.DeliveryMix = []DeliveryOption{{Type: DeliverySameDay, Weight: 1, Multiplier: 0.5}}

	m, err := Simulate(cfg, makeOrders(3, 1, 1))
	require.NoError(t, err)

	// THEN all deliveries happen on day 0 in placement order
	require.Len(t, m.Records, 3)
	for i, r := range m.Records {
		assert.Equal(t, int64(0), r.SimTime)
		assert.Equal(t, fmt.Sprintf("o%d", i), r.OrderID)
	}
}

func TestSimulate_Horizon_LeavesOrdersInTransit(t *testing.T) {
	cfg := fixedConfig(100, 4, 0)
	cfg.Horizon = 3

	m, err := Simulate(cfg, makeOrders(5, 1, 1))
	require.NoError(t, err)

	assert.Empty(t, m.Records)
	assert.Equal(t, 5, m.KPIs().InTransit)
	assert.Equal(t, int64(100), m.CurrentStock)
}

func TestSimulate_Replenishment_RestocksAfterLeadTime(t *testing.T) {
	// GIVEN 5 units, reorder point 2, and a 10-unit order arriving 1 day after trigger
	cfg := fixedConfig(5, 2, 0)
	cfg.Replenishment = ReplenishmentConfig{Enabled: true, ReorderPoint: 2, OrderQuantity: 10, LeadTimeDays: 1}

	m, err := Simulate(cfg, makeOrders(2, 3, 1))
	require.NoError(t, err)

	// THEN the second order stocks out on day 2 and stock is refilled on day 3
	assert.Equal(t, 1, m.Stockouts)
	require.Len(t, m.Replenishments, 1)
	assert.Equal(t, ReplenishmentRecord{ArrivedAt: 3, Quantity: 10, StockAfter: 12}, m.Replenishments[0])
	assert.Equal(t, int64(12), m.CurrentStock)
	assert.Equal(t, []StockPoint{{Day: 2, Stock: 2}, {Day: 3, Stock: 12}}, m.StockSeries())
}

func TestSimulate_SameSeed_IsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	orders := makeOrders(200, 7, 12.5)

	a, err := Simulate(cfg, orders)
	require.NoError(t, err)
	b, err := Simulate(cfg, orders)
	require.NoError(t, err)

	require.Equal(t, len(a.Records), len(b.Records))
	for i := range a.Records {
		assert.Equal(t, a.Records[i].OrderID, b.Records[i].OrderID)
		assert.Equal(t, a.Records[i].DeliveryType, b.Records[i].DeliveryType)
		assert.Equal(t, a.Records[i].Status, b.Records[i].Status)
		assert.Equal(t, a.Records[i].SimTime, b.Records[i].SimTime)
	}
	assert.True(t, a.CumulativeProfit.Equal(b.CumulativeProfit))
}

func TestSimulate_DefaultMix_DelaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	m, err := Simulate(cfg, makeOrders(500, 1, 1))
	require.NoError(t, err)

	seen := map[DeliveryType]bool{}
	for _, r := range m.Records {
		seen[r.DeliveryType] = true
		assert.GreaterOrEqual(t, r.DelayDays, int64(1)) // 2 * 0.5
		assert.LessOrEqual(t, r.DelayDays, cfg.DelayMaxDays)
		assert.Equal(t, r.SimTime, r.DelayDays)
	}
	assert.Len(t, seen, 3)

	// records are in completion order
	for i := 1; i < len(m.Records); i++ {
		assert.LessOrEqual(t, m.Records[i-1].SimTime, m.Records[i].SimTime)
	}
}

func TestSimulate_NoOrders_ZeroKPIs(t *testing.T) {
	m, err := Simulate(DefaultConfig(), nil)
	require.NoError(t, err)
	k := m.KPIs()
	assert.Equal(t, 0.0, k.DeliveredPct)
	assert.Equal(t, 0.0, k.ReturnedPct)
	assert.True(t, k.TotalProfit.IsZero())
	assert.Equal(t, int64(10000), k.RemainingStock)
}

func TestNewSimulator_InvalidConfig_ReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DelayMinDays = 8
	cfg.DelayMaxDays = 3
	_, err := NewSimulator(cfg, nil)
	assert.Error(t, err)
}
