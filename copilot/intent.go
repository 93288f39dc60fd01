// Package copilot turns free-text supply-chain questions into planner calls.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Operation names one planner call the copilot can make.
type Operation string

const (
	OpRunSimulation    Operation = "run_simulation"
	OpForecastDemand   Operation = "forecast_demand"
	OpSafetyStock      Operation = "safety_stock"
	OpSummarizeDataset Operation = "summarize_dataset"
	OpOptimizeRoute    Operation = "optimize_route"
)

// Operations lists every supported operation in presentation order.
var Operations = []Operation{OpRunSimulation, OpForecastDemand, OpSafetyStock, OpSummarizeDataset, OpOptimizeRoute}

// ErrUnknownIntent is returned when a query maps to no supported operation.
var ErrUnknownIntent = errors.New("could not map the question to a supported operation")

func unknownIntent(query string) error {
	names := make([]string, len(Operations))
	for i, op := range Operations {
		names[i] = string(op)
	}
	return fmt.Errorf("%w %q (supported: %s)", ErrUnknownIntent, query, strings.Join(names, ", "))
}

// Valid reports whether op is supported.
func (op Operation) Valid() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Arguments are the optional parameters extracted from a query. Zero or nil
// fields leave the planner defaults in place.
type Arguments struct {
	DatasetID       string   `json:"dataset_id,omitempty"`
	RunID           string   `json:"run_id,omitempty"`
	Orders          int      `json:"orders,omitempty"`
	ReturnRatePct   *float64 `json:"return_rate_pct,omitempty"`
	DelayMinDays    *int64   `json:"delay_min_days,omitempty"`
	DelayMaxDays    *int64   `json:"delay_max_days,omitempty"`
	InitialStock    *int64   `json:"initial_stock,omitempty"`
	Periods         int      `json:"periods,omitempty"`
	Vehicles        int      `json:"vehicles,omitempty"`
	VehicleCapacity int64    `json:"vehicle_capacity,omitempty"`
}

// Intent is an interpreted query.
type Intent struct {
	Operation Operation `json:"operation"`
	Args      Arguments `json:"arguments"`
	Source    string    `json:"source"` // interpreter that produced it
}

// Interpreter maps a query to an intent.
type Interpreter interface {
	Interpret(ctx context.Context, query string) (*Intent, error)
}
