package copilot

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/planner"
	"github.com/supplychain-copilot/copilot/sim/forecast"
	"github.com/supplychain-copilot/copilot/sim/inventory"
	"github.com/supplychain-copilot/copilot/sim/route"
)

// Planner is the subset of *planner.Planner the copilot calls.
type Planner interface {
	Simulate(ctx context.Context, req planner.SimulationRequest) (*planner.Run, error)
	Forecast(datasetID string, periods int) ([]forecast.Point, error)
	Inventory(runID string) (*inventory.Policy, error)
	Summary(datasetID string) (*planner.Summary, error)
	OptimizeRoute(p route.Problem) (*route.Plan, error)
}

// Answer is the copilot's reply: a one-line summary plus the operation
// payload for the dashboard to render.
type Answer struct {
	Query   string `json:"query"`
	Intent  Intent `json:"intent"`
	Summary string `json:"summary"`
	Data    any    `json:"data"`
}

// Copilot interprets questions and dispatches them to the planner.
type Copilot struct {
	planner  Planner
	primary  Interpreter
	fallback Interpreter
	fleet    *route.Problem
}

// Option configures a Copilot.
type Option func(*Copilot)

// WithFallback sets the interpreter used when the primary one fails.
func WithFallback(i Interpreter) Option {
	return func(c *Copilot) { c.fallback = i }
}

// WithFleet sets the depot, stops and vehicles used by route questions.
func WithFleet(p *route.Problem) Option {
	return func(c *Copilot) { c.fleet = p }
}

// New returns a Copilot. A nil interpreter means KeywordInterpreter.
func New(p Planner, interp Interpreter, opts ...Option) *Copilot {
	if interp == nil {
		interp = KeywordInterpreter{}
	}
	c := &Copilot{planner: p, primary: interp}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interpret resolves query to an intent, falling back to the secondary
// interpreter when the primary errors for any reason other than an
// unrecognised question.
func (c *Copilot) Interpret(ctx context.Context, query string) (*Intent, error) {
	intent, err := c.primary.Interpret(ctx, query)
	if err == nil {
		return intent, nil
	}
	if c.fallback == nil || errors.Is(err, ErrUnknownIntent) {
		return nil, err
	}
	logrus.Warnf("copilot: primary interpreter failed, using fallback: %v", err)
	return c.fallback.Interpret(ctx, query)
}

// Ask answers a free-text question.
func (c *Copilot) Ask(ctx context.Context, query string) (*Answer, error) {
	intent, err := c.Interpret(ctx, query)
	if err != nil {
		return nil, err
	}
	logrus.Infof("copilot: %q -> %s (%s)", query, intent.Operation, intent.Source)
	ans := &Answer{Query: query, Intent: *intent}
	if err := c.dispatch(ctx, intent, ans); err != nil {
		return nil, fmt.Errorf("%s: %w", intent.Operation, err)
	}
	return ans, nil
}

func (c *Copilot) dispatch(ctx context.Context, intent *Intent, ans *Answer) error {
	a := intent.Args
	switch intent.Operation {
	case OpRunSimulation:
		run, err := c.planner.Simulate(ctx, planner.SimulationRequest{
			DatasetID:     a.DatasetID,
			Orders:        a.Orders,
			ReturnRatePct: a.ReturnRatePct,
			DelayMinDays:  a.DelayMinDays,
			DelayMaxDays:  a.DelayMaxDays,
			InitialStock:  a.InitialStock,
		})
		if err != nil {
			return err
		}
		k := run.KPIs
		ans.Summary = fmt.Sprintf("Simulated %d orders: profit $%s, %.1f%% delivered, %.1f%% returned, %d stockouts.",
			run.Metrics.Orders, k.TotalProfit.StringFixed(2), k.DeliveredPct, k.ReturnedPct, k.Stockouts)
		if run.Inventory.NeedsReplenishment {
			ans.Summary += fmt.Sprintf(" Stock fell to the reorder point (%.0f units).", run.Inventory.ReorderPoint)
		}
		ans.Data = run.Summary()

	case OpForecastDemand:
		points, err := c.planner.Forecast(a.DatasetID, a.Periods)
		if err != nil {
			return err
		}
		var future []forecast.Point
		var total, lower, upper float64
		for _, p := range points {
			if p.IsFuture {
				future = append(future, p)
				total += p.YHat
				lower += p.YHatLower
				upper += p.YHatUpper
			}
		}
		ans.Summary = fmt.Sprintf("Expected demand over the next %d days: %.0f units (80%% interval %.0f to %.0f).",
			len(future), total, lower, upper)
		ans.Data = future

	case OpSafetyStock:
		policy, err := c.planner.Inventory(a.RunID)
		if err != nil {
			return err
		}
		ans.Summary = fmt.Sprintf("Safety stock %.0f units, reorder point %.0f units, order quantity %.0f units.",
			policy.SafetyStock, policy.ReorderPoint, policy.OrderQuantity)
		if policy.NeedsReplenishment {
			ans.Summary += " Replenishment needed: stock dropped to or below the reorder point."
		}
		ans.Data = policy

	case OpSummarizeDataset:
		sum, err := c.planner.Summary(a.DatasetID)
		if err != nil {
			return err
		}
		ans.Summary = fmt.Sprintf("Dataset %s has %d usable orders (%d dropped).",
			sum.Dataset.Name, sum.Dataset.Rows, sum.Dataset.Dropped)
		for _, col := range sum.Columns {
			ans.Summary += fmt.Sprintf(" Mean %s %.2f.", col.Column, col.Mean)
		}
		ans.Data = sum

	case OpOptimizeRoute:
		if c.fleet == nil || len(c.fleet.Stops) == 0 {
			return errors.New("no delivery stops configured")
		}
		problem := *c.fleet
		if a.Vehicles > 0 {
			problem.Vehicles = a.Vehicles
		}
		if a.VehicleCapacity > 0 {
			problem.VehicleCapacity = a.VehicleCapacity
		}
		plan, err := c.planner.OptimizeRoute(problem)
		if err != nil {
			return err
		}
		ans.Summary = fmt.Sprintf("%d routes, %.1f km in total, %d stops unassigned.",
			len(plan.Routes), plan.TotalDistanceKm, len(plan.Unassigned))
		ans.Data = plan

	default:
		return unknownIntent(string(intent.Operation))
	}
	return nil
}
