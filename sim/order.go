// Defines the Order and OrderRecord types that flow through a delivery simulation.

package sim

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DeliveryType is the shipping mode chosen for an order.
type DeliveryType string

const (
	DeliveryStandard DeliveryType = "Standard"
	DeliveryExpress  DeliveryType = "Express"
	DeliverySameDay  DeliveryType = "Same-Day"
)

// OrderStatus is the terminal state of a simulated order.
type OrderStatus string

const (
	StatusDelivered OrderStatus = "Delivered"
	StatusReturned  OrderStatus = "Returned"
	StatusStockout  OrderStatus = "Stockout"
)

// Order is one customer order fed into the simulator.
type Order struct {
	ID         string
	Quantity   int64
	UnitPrice  float64
	BaseProfit decimal.Decimal // profit booked when the order is delivered on time
}

func (o Order) String() string {
	return fmt.Sprintf("Order: (ID: %s, Quantity: %d, BaseProfit: %s)", o.ID, o.Quantity, o.BaseProfit)
}

// OrderRecord is the log line written when an order completes.
type OrderRecord struct {
	SimTime          int64           `json:"sim_time"`
	OrderID          string          `json:"order_id"`
	DeliveryType     DeliveryType    `json:"delivery_type"`
	Status           OrderStatus     `json:"status"`
	Profit           decimal.Decimal `json:"profit"`
	DelayDays        int64           `json:"delay_days"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	HoldingCost      decimal.Decimal `json:"holding_cost"`
	StockUsed        int64           `json:"stock_used"`
	RemainingStock   int64           `json:"remaining_stock"`
}

// shipment is the in-flight state of an order between placement and delivery.
type shipment struct {
	order         Order
	deliveryType  DeliveryType
	baseDelay     int64
	adjustedDelay int64
}
