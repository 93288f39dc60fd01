package sim

import (
	"fmt"
	"math"
)

// DeliveryOption is one entry of the delivery-mode mix: how often it is
// chosen and how much it scales the base shipping delay.
type DeliveryOption struct {
	Type       DeliveryType `yaml:"type" json:"type"`
	Weight     float64      `yaml:"weight" json:"weight"`
	Multiplier float64      `yaml:"multiplier" json:"multiplier"`
}

// ReplenishmentConfig enables a reorder-point replenishment policy.
// Disabled by default: the plain simulation only draws down initial stock.
type ReplenishmentConfig struct {
	Enabled       bool  `yaml:"enabled" json:"enabled"`
	ReorderPoint  int64 `yaml:"reorder_point" json:"reorder_point"`
	OrderQuantity int64 `yaml:"order_quantity" json:"order_quantity"`
	LeadTimeDays  int64 `yaml:"lead_time_days" json:"lead_time_days"`
}

// Config groups the parameters of a delivery simulation.
type Config struct {
	InitialStock       int64               `yaml:"initial_stock" json:"initial_stock"`
	ReturnRatePct      float64             `yaml:"return_rate_pct" json:"return_rate_pct"`
	DelayMinDays       int64               `yaml:"delay_min_days" json:"delay_min_days"`
	DelayMaxDays       int64               `yaml:"delay_max_days" json:"delay_max_days"`
	DeliveryMix        []DeliveryOption    `yaml:"delivery_mix" json:"delivery_mix"`
	DelayPenaltyPerDay float64             `yaml:"delay_penalty_per_day" json:"delay_penalty_per_day"`
	HoldingCostRate    float64             `yaml:"holding_cost_rate" json:"holding_cost_rate"`
	Horizon            int64               `yaml:"horizon,omitempty" json:"horizon,omitempty"` // 0 = run until the queue drains
	Seed               int64               `yaml:"seed" json:"seed"`
	Replenishment      ReplenishmentConfig `yaml:"replenishment" json:"replenishment"`
}

// DefaultDeliveryMix is the 60/30/10 Standard/Express/Same-Day split.
func DefaultDeliveryMix() []DeliveryOption {
	return []DeliveryOption{
		{Type: DeliveryStandard, Weight: 0.6, Multiplier: 1.0},
		{Type: DeliveryExpress, Weight: 0.3, Multiplier: 0.8},
		{Type: DeliverySameDay, Weight: 0.1, Multiplier: 0.5},
	}
}

// DefaultConfig returns the dashboard's default simulation controls.
func DefaultConfig() Config {
	return Config{
		InitialStock:       10000,
		ReturnRatePct:      10,
		DelayMinDays:       2,
		DelayMaxDays:       10,
		DeliveryMix:        DefaultDeliveryMix(),
		DelayPenaltyPerDay: 5,
		HoldingCostRate:    0.2,
		Seed:               42,
	}
}

// LeadTimeDays is the mean of the shipping delay bounds.
func (c Config) LeadTimeDays() float64 {
	return float64(c.DelayMinDays+c.DelayMaxDays) / 2
}

// Validate checks that all fields are in range.
func (c Config) Validate() error {
	if c.InitialStock < 0 {
		return fmt.Errorf("initial_stock must be non-negative, got %d", c.InitialStock)
	}
	if math.IsNaN(c.ReturnRatePct) || c.ReturnRatePct < 0 || c.ReturnRatePct > 100 {
		return fmt.Errorf("return_rate_pct must be in [0, 100], got %f", c.ReturnRatePct)
	}
	if c.DelayMinDays < 0 {
		return fmt.Errorf("delay_min_days must be non-negative, got %d", c.DelayMinDays)
	}
	if c.DelayMaxDays < c.DelayMinDays {
		return fmt.Errorf("delay_max_days (%d) must be >= delay_min_days (%d)", c.DelayMaxDays, c.DelayMinDays)
	}
	if len(c.DeliveryMix) == 0 {
		return fmt.Errorf("delivery_mix must contain at least one option")
	}
	total := 0.0
	for i, opt := range c.DeliveryMix {
		prefix := fmt.Sprintf("delivery_mix[%d]", i)
		if opt.Type == "" {
			return fmt.Errorf("%s: type must be set", prefix)
		}
		if math.IsNaN(opt.Weight) || math.IsInf(opt.Weight, 0) || opt.Weight < 0 {
			return fmt.Errorf("%s: weight must be a non-negative finite number, got %f", prefix, opt.Weight)
		}
		if math.IsNaN(opt.Multiplier) || math.IsInf(opt.Multiplier, 0) || opt.Multiplier < 0 {
			return fmt.Errorf("%s: multiplier must be a non-negative finite number, got %f", prefix, opt.Multiplier)
		}
		total += opt.Weight
	}
	if total <= 0 {
		return fmt.Errorf("delivery_mix weights must sum to a positive value")
	}
	if c.DelayPenaltyPerDay < 0 {
		return fmt.Errorf("delay_penalty_per_day must be non-negative, got %f", c.DelayPenaltyPerDay)
	}
	if c.HoldingCostRate < 0 {
		return fmt.Errorf("holding_cost_rate must be non-negative, got %f", c.HoldingCostRate)
	}
	if c.Horizon < 0 {
		return fmt.Errorf("horizon must be non-negative, got %d", c.Horizon)
	}
	if r := c.Replenishment; r.Enabled {
		if r.OrderQuantity <= 0 {
			return fmt.Errorf("replenishment.order_quantity must be positive, got %d", r.OrderQuantity)
		}
		if r.LeadTimeDays < 0 {
			return fmt.Errorf("replenishment.lead_time_days must be non-negative, got %d", r.LeadTimeDays)
		}
		if r.ReorderPoint < 0 {
			return fmt.Errorf("replenishment.reorder_point must be non-negative, got %d", r.ReorderPoint)
		}
	}
	return nil
}
