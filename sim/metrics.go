// Tracks simulation-wide KPIs and the per-order ledger.

package sim

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// StockPoint is the stock level at the end of a simulated day.
type StockPoint struct {
	Day   int64 `json:"day"`
	Stock int64 `json:"stock"`
}

// ReplenishmentRecord logs a supplier shipment arriving at the warehouse.
type ReplenishmentRecord struct {
	ArrivedAt  int64 `json:"arrived_at"`
	Quantity   int64 `json:"quantity"`
	StockAfter int64 `json:"stock_after"`
}

// Metrics aggregates statistics about the simulation
// for final reporting.
type Metrics struct {
	Orders           int             `json:"orders"`            // Number of orders fed to the simulator
	Delivered        int             `json:"delivered"`         // Orders delivered and kept
	Returned         int             `json:"returned"`          // Orders delivered and sent back
	Stockouts        int             `json:"stockouts"`         // Orders that found insufficient stock
	InitialStock     int64           `json:"initial_stock"`     // Units on hand at day 0
	TotalStockUsed   int64           `json:"total_stock_used"`  // Units shipped (returns are not restocked)
	CurrentStock     int64           `json:"current_stock"`     // Units on hand when the run ended
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"` // Sum of per-order profit
	SimEndedTime     int64           `json:"sim_ended_time"`    // Day of the last executed event

	Records        []OrderRecord         `json:"records"`
	StockLevels    map[int64]int64       `json:"stock_levels"` // day -> stock after the last event of that day
	Replenishments []ReplenishmentRecord `json:"replenishments"`
}

// NewMetrics creates an empty Metrics for a run over the given number of orders.
func NewMetrics(initialStock int64, orders int) *Metrics {
	return &Metrics{
		Orders:           orders,
		InitialStock:     initialStock,
		CurrentStock:     initialStock,
		CumulativeProfit: decimal.Zero,
		Records:          make([]OrderRecord, 0, orders),
		StockLevels:      make(map[int64]int64),
	}
}

// KPIs is the key-metrics panel of the dashboard.
type KPIs struct {
	TotalProfit    decimal.Decimal `json:"total_profit"`
	DeliveredPct   float64         `json:"delivered_pct"`
	ReturnedPct    float64         `json:"returned_pct"`
	Stockouts      int             `json:"stockouts"`
	InTransit      int             `json:"in_transit"`
	InitialStock   int64           `json:"initial_stock"`
	StockUsed      int64           `json:"stock_used"`
	RemainingStock int64           `json:"remaining_stock"`
	Replenishments int             `json:"replenishments"`
	TotalHolding   decimal.Decimal `json:"total_holding_cost"`
	SimulatedDays  int64           `json:"simulated_days"`
}

// KPIs computes the headline metrics. Percentages are relative to the
// number of orders fed in, so orders still in transit at the horizon
// count against both.
func (m *Metrics) KPIs() KPIs {
	k := KPIs{
		TotalProfit:    m.CumulativeProfit,
		Stockouts:      m.Stockouts,
		InTransit:      m.Orders - len(m.Records),
		InitialStock:   m.InitialStock,
		StockUsed:      m.TotalStockUsed,
		RemainingStock: m.CurrentStock,
		Replenishments: len(m.Replenishments),
		TotalHolding:   decimal.Zero,
		SimulatedDays:  m.SimEndedTime,
	}
	if m.Orders > 0 {
		k.DeliveredPct = float64(m.Delivered) / float64(m.Orders) * 100
		k.ReturnedPct = float64(m.Returned) / float64(m.Orders) * 100
	}
	for _, r := range m.Records {
		k.TotalHolding = k.TotalHolding.Add(r.HoldingCost)
	}
	return k
}

// Print writes the key metrics as a human-readable block.
func (m *Metrics) Print(w io.Writer) {
	k := m.KPIs()
	fmt.Fprintln(w, "=== Key Metrics ===")
	fmt.Fprintf(w, "Total Profit ($)          : %s\n", k.TotalProfit.StringFixed(2))
	fmt.Fprintf(w, "Successful Deliveries (%%) : %.2f%%\n", k.DeliveredPct)
	fmt.Fprintf(w, "Returns (%%)               : %.2f%%\n", k.ReturnedPct)
	fmt.Fprintf(w, "Stockouts                 : %d\n", k.Stockouts)
	fmt.Fprintf(w, "Stock (initial/used/left) : %d / %d / %d\n", k.InitialStock, k.StockUsed, k.RemainingStock)
	if k.InTransit > 0 {
		fmt.Fprintf(w, "In Transit at Horizon     : %d\n", k.InTransit)
	}
	if k.Replenishments > 0 {
		fmt.Fprintf(w, "Replenishments Received   : %d\n", k.Replenishments)
	}
}
