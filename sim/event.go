package sim

import "github.com/sirupsen/logrus"

// EventType classifies events for same-tick ordering.
type EventType string

const (
	EventTypeOrderPlaced          EventType = "OrderPlaced"
	EventTypeReplenishmentArrival EventType = "ReplenishmentArrival"
	EventTypeOrderDelivered       EventType = "OrderDelivered"
)

// EventTypePriority defines ordering for simultaneous events.
// Lower values are processed first.
var EventTypePriority = map[EventType]int{
	EventTypeOrderPlaced:          1,
	EventTypeReplenishmentArrival: 2,
	EventTypeOrderDelivered:       3,
}

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in days) and an Execute method
// that advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Type() EventType
	Execute(*Simulator)
}

// OrderPlacedEvent starts the fulfilment of one order.
type OrderPlacedEvent struct {
	time  int64
	Order Order
}

func (e *OrderPlacedEvent) Timestamp() int64 { return e.time }
func (e *OrderPlacedEvent) Type() EventType  { return EventTypeOrderPlaced }

// Execute draws the shipping delay and delivery mode, then schedules the delivery.
func (e *OrderPlacedEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< OrderPlaced: %s at day %d", e.Order.ID, e.time)
	s := sim.dispatch(e.Order)
	sim.Schedule(&OrderDeliveredEvent{time: e.time + s.adjustedDelay, shipment: s})
}

// OrderDeliveredEvent settles an order: stock, returns, profit.
type OrderDeliveredEvent struct {
	time     int64
	shipment shipment
}

func (e *OrderDeliveredEvent) Timestamp() int64 { return e.time }
func (e *OrderDeliveredEvent) Type() EventType  { return EventTypeOrderDelivered }

func (e *OrderDeliveredEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< OrderDelivered: %s at day %d", e.shipment.order.ID, e.time)
	sim.settle(e.shipment)
}

// ReplenishmentArrivalEvent adds a supplier shipment to stock.
type ReplenishmentArrivalEvent struct {
	time     int64
	Quantity int64
}

func (e *ReplenishmentArrivalEvent) Timestamp() int64 { return e.time }
func (e *ReplenishmentArrivalEvent) Type() EventType  { return EventTypeReplenishmentArrival }

func (e *ReplenishmentArrivalEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< ReplenishmentArrival: %d units at day %d", e.Quantity, e.time)
	sim.receive(e.Quantity)
}
