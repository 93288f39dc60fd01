// Package inventory derives safety stock, reorder point and order quantity
// from a simulated or historical consumption ledger.
package inventory

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/supplychain-copilot/copilot/sim"
)

// Analysis is the safety-stock and reorder panel.
type Analysis struct {
	LeadTimeDays       float64 `json:"lead_time_days"`
	AvgDailyUsage      float64 `json:"avg_daily_usage"`
	StdDailyUsage      float64 `json:"std_daily_usage"`
	SafetyStock        float64 `json:"safety_stock"`
	ReorderPoint       float64 `json:"reorder_point"`
	MinStockLevel      int64   `json:"min_stock_level"`
	NeedsReplenishment bool    `json:"needs_replenishment"`
	UsageDays          int     `json:"usage_days"`
}

// DailyUsage sums units shipped per simulated day, sorted by day.
// Only days with at least one completed order appear.
func DailyUsage(records []sim.OrderRecord) []float64 {
	sums := make(map[int64]float64)
	for _, r := range records {
		sums[r.SimTime] += float64(r.StockUsed)
	}
	days := make([]int64, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	usage := make([]float64, len(days))
	for i, d := range days {
		usage[i] = sums[d]
	}
	return usage
}

// Analyze computes safety stock as std(daily usage) * sqrt(lead time) and
// the reorder point as mean(daily usage) * lead time + safety stock.
// The standard deviation of fewer than two usage days is taken as 0.
func Analyze(m *sim.Metrics, leadTimeDays float64) Analysis {
	usage := DailyUsage(m.Records)
	a := Analysis{LeadTimeDays: leadTimeDays, UsageDays: len(usage)}
	if len(usage) > 0 {
		a.AvgDailyUsage = stat.Mean(usage, nil)
	}
	if len(usage) > 1 {
		a.StdDailyUsage = stat.StdDev(usage, nil)
	}
	a.SafetyStock = a.StdDailyUsage * math.Sqrt(leadTimeDays)
	a.ReorderPoint = a.AvgDailyUsage*leadTimeDays + a.SafetyStock

	series := m.StockSeries()
	if len(series) > 0 {
		a.MinStockLevel = series[0].Stock
		for _, p := range series {
			a.MinStockLevel = min(a.MinStockLevel, p.Stock)
		}
		a.NeedsReplenishment = float64(a.MinStockLevel) <= a.ReorderPoint
	}
	return a
}

// ServiceLevelSafetyStock returns z * std * sqrt(lead time), where z is the
// standard normal quantile of the target cycle service level.
func ServiceLevelSafetyStock(serviceLevel, stdDailyUsage, leadTimeDays float64) (float64, error) {
	if serviceLevel <= 0 || serviceLevel >= 1 {
		return 0, fmt.Errorf("service level must be in (0, 1), got %f", serviceLevel)
	}
	if stdDailyUsage < 0 || leadTimeDays < 0 {
		return 0, fmt.Errorf("std and lead time must be non-negative")
	}
	z := distuv.UnitNormal.Quantile(serviceLevel)
	return z * stdDailyUsage * math.Sqrt(leadTimeDays), nil
}

// EconomicOrderQuantity returns sqrt(2DS/H) for annual demand D, fixed cost
// per order S and holding cost per unit-year H.
func EconomicOrderQuantity(annualDemand, orderCost, holdingCost float64) (float64, error) {
	if annualDemand < 0 || orderCost < 0 {
		return 0, fmt.Errorf("annual demand and order cost must be non-negative")
	}
	if holdingCost <= 0 {
		return 0, fmt.Errorf("holding cost must be positive, got %f", holdingCost)
	}
	return math.Sqrt(2 * annualDemand * orderCost / holdingCost), nil
}

// Policy is a complete replenishment recommendation.
type Policy struct {
	Analysis
	ServiceLevel        float64 `json:"service_level"`
	ServiceSafetyStock  float64 `json:"service_safety_stock"`
	ServiceReorderPoint float64 `json:"service_reorder_point"`
	OrderQuantity       float64 `json:"order_quantity"`
}

// PolicyOptions parameterise Recommend.
type PolicyOptions struct {
	ServiceLevel    float64 // target cycle service level, e.g. 0.95
	OrderCost       float64 // fixed cost per replenishment order
	HoldingCostRate float64 // holding cost per unit-day
}

// Recommend extends Analyze with a service-level safety stock and an EOQ
// sized from the average daily usage.
func Recommend(m *sim.Metrics, leadTimeDays float64, opts PolicyOptions) (Policy, error) {
	a := Analyze(m, leadTimeDays)
	p := Policy{Analysis: a, ServiceLevel: opts.ServiceLevel}
	ss, err := ServiceLevelSafetyStock(opts.ServiceLevel, a.StdDailyUsage, leadTimeDays)
	if err != nil {
		return Policy{}, err
	}
	p.ServiceSafetyStock = ss
	p.ServiceReorderPoint = a.AvgDailyUsage*leadTimeDays + ss
	eoq, err := EconomicOrderQuantity(a.AvgDailyUsage*365, opts.OrderCost, opts.HoldingCostRate*365)
	if err != nil {
		return Policy{}, err
	}
	p.OrderQuantity = eoq
	return p, nil
}
