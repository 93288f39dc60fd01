package dataset

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/supplychain-copilot/copilot/sim"
)

// ColumnSummary holds the descriptive statistics of one numeric column.
type ColumnSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Describe summarises profit, quantity and price.
// Std is the sample standard deviation; it is 0 for a single row.
func (d *Dataset) Describe() []ColumnSummary {
	profit := make([]float64, len(d.Rows))
	qty := make([]float64, len(d.Rows))
	price := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		profit[i] = r.Profit.InexactFloat64()
		qty[i] = float64(r.Quantity)
		price[i] = r.ProductPrice
	}
	return []ColumnSummary{
		summarize(ColProfit, profit),
		summarize(ColQuantity, qty),
		summarize(ColProductPrice, price),
	}
}

func summarize(name string, values []float64) ColumnSummary {
	s := ColumnSummary{Column: name, Count: len(values)}
	if len(values) == 0 {
		return s
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.P25 = sim.CalculatePercentile(sorted, 25)
	s.P50 = sim.CalculatePercentile(sorted, 50)
	s.P75 = sim.CalculatePercentile(sorted, 75)
	return s
}
