// sim/metrics_utils.go
package sim

import (
	"math"
	"sort"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile returns the p-th percentile of sorted data, linearly
// interpolating between the two closest ranks. Returns 0 for empty data.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return float64(data[n-1])
	}
	if lowerIdx == upperIdx {
		return float64(data[lowerIdx])
	}
	lowerVal := float64(data[lowerIdx])
	upperVal := float64(data[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean returns the arithmetic mean, or 0 for empty data.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}
	return sum / float64(len(numbers))
}

// Quartiles summarises one numeric distribution for box/violin panels.
type Quartiles struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// NewQuartiles summarises values. The input is not modified.
func NewQuartiles(values []float64) Quartiles {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q := Quartiles{Count: len(sorted), Mean: CalculateMean(sorted)}
	if len(sorted) == 0 {
		return q
	}
	q.Min = sorted[0]
	q.Max = sorted[len(sorted)-1]
	q.Q1 = CalculatePercentile(sorted, 25)
	q.Median = CalculatePercentile(sorted, 50)
	q.Q3 = CalculatePercentile(sorted, 75)
	return q
}

// ProfitByDeliveryType groups record profits by delivery mode.
func (m *Metrics) ProfitByDeliveryType() map[DeliveryType]Quartiles {
	groups := make(map[DeliveryType][]float64)
	for _, r := range m.Records {
		groups[r.DeliveryType] = append(groups[r.DeliveryType], r.Profit.InexactFloat64())
	}
	out := make(map[DeliveryType]Quartiles, len(groups))
	for t, vals := range groups {
		out[t] = NewQuartiles(vals)
	}
	return out
}

// StatusBreakdown counts records per terminal status.
func (m *Metrics) StatusBreakdown() map[OrderStatus]int {
	out := map[OrderStatus]int{StatusDelivered: 0, StatusReturned: 0, StatusStockout: 0}
	for _, r := range m.Records {
		out[r.Status]++
	}
	return out
}

// Bin is one histogram bucket [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets values into n equal-width bins spanning [min, max].
// The maximum value lands in the last bin.
func Histogram(values []float64, n int) []Bin {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(n)
	if width == 0 {
		return []Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lower = lo + float64(i)*width
		bins[i].Upper = lo + float64(i+1)*width
	}
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}

// HoldingCostHistogram buckets per-order holding costs.
func (m *Metrics) HoldingCostHistogram(n int) []Bin {
	vals := make([]float64, len(m.Records))
	for i, r := range m.Records {
		vals[i] = r.HoldingCost.InexactFloat64()
	}
	return Histogram(vals, n)
}

// SalesVolume counts completed orders per simulated day.
func (m *Metrics) SalesVolume() map[int64]int {
	out := make(map[int64]int)
	for _, r := range m.Records {
		out[r.SimTime]++
	}
	return out
}

// DelayProfitCell is one cell of the delay-vs-profit heatmap.
type DelayProfitCell struct {
	DelayDays  int64   `json:"delay_days"`
	Count      int     `json:"count"`
	MeanProfit float64 `json:"mean_profit"`
}

// DelayProfitGrid aggregates profit per delivered delay, sorted by delay.
func (m *Metrics) DelayProfitGrid() []DelayProfitCell {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, r := range m.Records {
		sums[r.DelayDays] += r.Profit.InexactFloat64()
		counts[r.DelayDays]++
	}
	cells := make([]DelayProfitCell, 0, len(counts))
	for d, c := range counts {
		cells = append(cells, DelayProfitCell{DelayDays: d, Count: c, MeanProfit: sums[d] / float64(c)})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].DelayDays < cells[j].DelayDays })
	return cells
}
