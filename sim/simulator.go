// sim/simulator.go
package sim

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Simulator is the core object that holds simulation time, stock state, and the event loop.
type Simulator struct {
	Clock   int64
	Horizon int64 // 0 = unbounded
	Config  Config
	// EventQueue has all pending placement, delivery and replenishment events
	EventQueue *EventQueue
	Metrics    *Metrics

	orders []Order
	rng    *PartitionedRNG
	stock  int64
	// replenishing is true while a supplier order is in transit
	replenishing bool
	cumulative   decimal.Decimal
	mixTotal     float64
}

// NewSimulator validates cfg and prepares a run over orders.
// Every order is placed at day 0, in input order.
func NewSimulator(cfg Config, orders []Order) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	total := 0.0
	for _, opt := range cfg.DeliveryMix {
		total += opt.Weight
	}
	s := &Simulator{
		Horizon:    cfg.Horizon,
		Config:     cfg,
		EventQueue: &EventQueue{},
		Metrics:    NewMetrics(cfg.InitialStock, len(orders)),
		orders:     orders,
		rng:        NewPartitionedRNG(cfg.Seed),
		stock:      cfg.InitialStock,
		cumulative: decimal.Zero,
		mixTotal:   total,
	}
	for _, o := range orders {
		s.Schedule(&OrderPlacedEvent{time: 0, Order: o})
	}
	return s, nil
}

// Schedule pushes an event into the simulator's EventQueue.
func (sim *Simulator) Schedule(ev Event) {
	sim.EventQueue.Schedule(ev)
}

// Run drains the event queue, or stops at the first event past the horizon.
func (sim *Simulator) Run() *Metrics {
	sim.checkReorderPoint()
	for sim.EventQueue.Len() > 0 {
		next := sim.EventQueue.Peek()
		if sim.Horizon > 0 && next.Timestamp() > sim.Horizon {
			logrus.Infof("[day %05d] Horizon reached with %d events pending", sim.Clock, sim.EventQueue.Len())
			break
		}
		ev := sim.EventQueue.PopNext()
		sim.Clock = ev.Timestamp()
		logrus.Tracef("[day %05d] Executing %T", sim.Clock, ev)
		ev.Execute(sim)
	}
	sim.Metrics.SimEndedTime = sim.Clock
	sim.Metrics.CurrentStock = sim.stock
	logrus.Infof("[day %05d] Simulation ended: %d records, %d stockouts", sim.Clock, len(sim.Metrics.Records), sim.Metrics.Stockouts)
	return sim.Metrics
}

// dispatch draws the delays and delivery mode of a newly placed order.
func (sim *Simulator) dispatch(o Order) shipment {
	delayRNG := sim.rng.ForSubsystem(SubsystemDelay)
	span := sim.Config.DelayMaxDays - sim.Config.DelayMinDays + 1
	base := sim.Config.DelayMinDays + delayRNG.Int63n(span)

	opt := sim.pickDelivery(sim.rng.ForSubsystem(SubsystemDeliveryType))
	adjusted := int64(float64(base) * opt.Multiplier)
	return shipment{order: o, deliveryType: opt.Type, baseDelay: base, adjustedDelay: adjusted}
}

// pickDelivery performs a weighted draw over the delivery mix.
func (sim *Simulator) pickDelivery(rng *rand.Rand) DeliveryOption {
	mix := sim.Config.DeliveryMix
	target := rng.Float64() * sim.mixTotal
	acc := 0.0
	for _, opt := range mix {
		acc += opt.Weight
		if target < acc {
			return opt
		}
	}
	return mix[len(mix)-1]
}

// settle books the outcome of a delivered order.
func (sim *Simulator) settle(s shipment) {
	returned := sim.rng.ForSubsystem(SubsystemReturns).Float64() < sim.Config.ReturnRatePct/100

	late := max(0, s.adjustedDelay-s.baseDelay)
	penalty := decimal.NewFromFloat(sim.Config.DelayPenaltyPerDay).Mul(decimal.NewFromInt(late)).Neg()
	status := StatusDelivered
	profit := s.order.BaseProfit.Add(penalty)
	quantity := s.order.Quantity

	if sim.stock < quantity {
		sim.Metrics.Stockouts++
		status = StatusStockout
		profit = decimal.Zero
		quantity = 0
	} else {
		sim.stock -= quantity
		sim.Metrics.TotalStockUsed += quantity
	}

	if returned && status == StatusDelivered {
		status = StatusReturned
		profit = profit.Abs().Neg()
	}

	switch status {
	case StatusDelivered:
		sim.Metrics.Delivered++
	case StatusReturned:
		sim.Metrics.Returned++
	}

	sim.cumulative = sim.cumulative.Add(profit)
	sim.Metrics.StockLevels[sim.Clock] = sim.stock

	holding := decimal.NewFromInt(quantity * s.adjustedDelay).Mul(decimal.NewFromFloat(sim.Config.HoldingCostRate))
	sim.Metrics.Records = append(sim.Metrics.Records, OrderRecord{
		SimTime:          sim.Clock,
		OrderID:          s.order.ID,
		DeliveryType:     s.deliveryType,
		Status:           status,
		Profit:           profit,
		DelayDays:        s.adjustedDelay,
		CumulativeProfit: sim.cumulative,
		HoldingCost:      holding,
		StockUsed:        quantity,
		RemainingStock:   sim.stock,
	})
	sim.Metrics.CumulativeProfit = sim.cumulative

	sim.checkReorderPoint()
}

// receive adds an arrived replenishment to stock.
func (sim *Simulator) receive(quantity int64) {
	sim.stock += quantity
	sim.replenishing = false
	sim.Metrics.StockLevels[sim.Clock] = sim.stock
	sim.Metrics.Replenishments = append(sim.Metrics.Replenishments, ReplenishmentRecord{
		ArrivedAt:  sim.Clock,
		Quantity:   quantity,
		StockAfter: sim.stock,
	})
	sim.checkReorderPoint()
}

// checkReorderPoint places a supplier order when stock is at or below the
// reorder point and none is outstanding.
func (sim *Simulator) checkReorderPoint() {
	r := sim.Config.Replenishment
	if !r.Enabled || sim.replenishing || sim.stock > r.ReorderPoint {
		return
	}
	sim.replenishing = true
	logrus.Debugf("[day %05d] Stock %d <= reorder point %d, ordering %d units", sim.Clock, sim.stock, r.ReorderPoint, r.OrderQuantity)
	sim.Schedule(&ReplenishmentArrivalEvent{time: sim.Clock + r.LeadTimeDays, Quantity: r.OrderQuantity})
}

// Simulate is a convenience wrapper: validate, run, return metrics.
func Simulate(cfg Config, orders []Order) (*Metrics, error) {
	s, err := NewSimulator(cfg, orders)
	if err != nil {
		return nil, err
	}
	return s.Run(), nil
}

// StockSeries returns the recorded stock levels sorted by day.
func (m *Metrics) StockSeries() []StockPoint {
	days := make([]int64, 0, len(m.StockLevels))
	for d := range m.StockLevels {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	series := make([]StockPoint, len(days))
	for i, d := range days {
		series[i] = StockPoint{Day: d, Stock: m.StockLevels[d]}
	}
	return series
}
