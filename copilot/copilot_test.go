package copilot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplychain-copilot/copilot/planner"
	"github.com/supplychain-copilot/copilot/sim/forecast"
	"github.com/supplychain-copilot/copilot/sim/inventory"
	"github.com/supplychain-copilot/copilot/sim/route"
)

func ordersCSV(n int) string {
	var b strings.Builder
	b.WriteString("Days for shipping (real),Order Id,Order Item Quantity,Product Price,Order Profit Per Order,Order Date\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%.2f,%.2f,3/%d/2019 08:30\n", 2+i%4, 100+i, 1+i%3, 15.5, float64(i%6), 1+i%28)
	}
	return b.String()
}

func newPlannerWithData(t *testing.T) *planner.Planner {
	t.Helper()
	p, err := planner.New(planner.Options{})
	require.NoError(t, err)
	_, err = p.AddDataset("orders.csv", strings.NewReader(ordersCSV(84)))
	require.NoError(t, err)
	return p
}

func TestAsk_RunSimulation(t *testing.T) {
	c := New(newPlannerWithData(t), nil)

	ans, err := c.Ask(context.Background(), "Simulate 40 orders with 0% returns")

	require.NoError(t, err)
	assert.Equal(t, OpRunSimulation, ans.Intent.Operation)
	assert.Contains(t, ans.Summary, "Simulated 40 orders")
	assert.Contains(t, ans.Summary, "0.0% returned")
	sum, ok := ans.Data.(planner.RunSummary)
	require.True(t, ok)
	assert.NotEmpty(t, sum.ID)
}

func TestAsk_SafetyStockUsesLatestRun(t *testing.T) {
	p := newPlannerWithData(t)
	c := New(p, nil)
	_, err := c.Ask(context.Background(), "run a simulation")
	require.NoError(t, err)

	ans, err := c.Ask(context.Background(), "what safety stock and reorder point do I need?")
	require.NoError(t, err)
	assert.Equal(t, OpSafetyStock, ans.Intent.Operation)
	assert.Contains(t, ans.Summary, "Safety stock")
	_, ok := ans.Data.(*inventory.Policy)
	assert.True(t, ok)
}

func TestAsk_SafetyStockWithoutRun(t *testing.T) {
	c := New(newPlannerWithData(t), nil)
	_, err := c.Ask(context.Background(), "safety stock?")
	assert.ErrorIs(t, err, planner.ErrNotFound)
}

func TestAsk_Forecast(t *testing.T) {
	c := New(newPlannerWithData(t), nil)

	ans, err := c.Ask(context.Background(), "forecast the next 10 days")

	require.NoError(t, err)
	future, ok := ans.Data.([]forecast.Point)
	require.True(t, ok)
	assert.Len(t, future, 10)
	assert.Contains(t, ans.Summary, "next 10 days")
}

func TestAsk_Summary(t *testing.T) {
	c := New(newPlannerWithData(t), nil)

	ans, err := c.Ask(context.Background(), "give me an overview of the dataset")

	require.NoError(t, err)
	assert.Contains(t, ans.Summary, "84 usable orders")
}

func TestAsk_Route(t *testing.T) {
	fleet := &route.Problem{
		Stops: []route.Stop{
			{ID: "a", Lon: 0.1, Demand: 5},
			{ID: "b", Lon: 0.2, Demand: 5},
		},
		VehicleCapacity: 5,
		Vehicles:        1,
	}
	c := New(newPlannerWithData(t), nil, WithFleet(fleet))

	// the question raises the fleet to 2 vehicles
	ans, err := c.Ask(context.Background(), "plan routes for 2 trucks")
	require.NoError(t, err)
	plan, ok := ans.Data.(*route.Plan)
	require.True(t, ok)
	assert.Len(t, plan.Routes, 2)
	assert.Empty(t, plan.Unassigned)
	assert.Equal(t, 1, fleet.Vehicles, "configured fleet is not mutated")
}

func TestAsk_RouteWithoutFleet(t *testing.T) {
	c := New(newPlannerWithData(t), nil)
	_, err := c.Ask(context.Background(), "plan routes")
	assert.ErrorContains(t, err, "no delivery stops configured")
}

func TestAsk_Unknown(t *testing.T) {
	c := New(newPlannerWithData(t), nil)
	_, err := c.Ask(context.Background(), "hello there")
	assert.ErrorIs(t, err, ErrUnknownIntent)
}

type failingInterpreter struct{ err error }

func (f failingInterpreter) Interpret(context.Context, string) (*Intent, error) {
	return nil, f.err
}

func TestInterpret_FallsBackOnError(t *testing.T) {
	c := New(newPlannerWithData(t), failingInterpreter{err: errors.New("timeout")}, WithFallback(KeywordInterpreter{}))

	intent, err := c.Interpret(context.Background(), "summarize the dataset")

	require.NoError(t, err)
	assert.Equal(t, "keyword", intent.Source)
}

func TestInterpret_NoFallbackForUnknownIntent(t *testing.T) {
	primary := failingInterpreter{err: unknownIntent("q")}
	c := New(newPlannerWithData(t), primary, WithFallback(KeywordInterpreter{}))

	_, err := c.Interpret(context.Background(), "summarize the dataset")
	assert.ErrorIs(t, err, ErrUnknownIntent)
}

func TestOperation_Valid(t *testing.T) {
	for _, op := range Operations {
		assert.True(t, op.Valid())
	}
	assert.False(t, Operation("drop_tables").Valid())
}
