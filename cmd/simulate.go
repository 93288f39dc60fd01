package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/supplychain-copilot/copilot/planner"
	"github.com/supplychain-copilot/copilot/sim/inventory"
)

var (
	// CLI flags for the simulate command
	dataPath      string  // Order CSV to sample from
	orders        int     // Number of orders to sample (0 = planner default)
	returnRatePct float64 // Probability (in %) that a delivered order is returned
	delayMinDays  int64   // Minimum random delivery delay
	delayMaxDays  int64   // Maximum random delivery delay
	initialStock  int64   // Units on hand at day 0
	seed          int64   // Seed for sampling and simulation randomness
	horizon       int64   // Last simulated day (0 = run until all orders settle)
	reorderPoint  int64   // Enables replenishment at this stock level
	orderQuantity int64   // Units per supplier order
	leadTimeDays  int64   // Supplier lead time in days
	outputPath    string  // Write the full run as JSON here
)

// simulateCmd runs one delivery simulation from an order CSV
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a delivery simulation over orders sampled from a CSV",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		info, err := a.loadDataset(dataPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		req := simulationRequest(cmd, info.ID)
		run, err := a.planner.Simulate(context.Background(), req)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		fmt.Printf("Run %s over %s (%d orders)\n", run.ID, info.Name, run.Metrics.Orders)
		run.Metrics.Print(os.Stdout)
		printInventory(os.Stdout, run.Inventory)
		if policy, err := a.planner.Inventory(run.ID); err == nil {
			printPolicy(os.Stdout, policy)
		} else {
			logrus.Warnf("reorder policy: %v", err)
		}

		if outputPath != "" {
			if err := writeJSON(outputPath, run); err != nil {
				logrus.Fatalf("Writing %s: %v", outputPath, err)
			}
			logrus.Infof("Run written to %s", outputPath)
		}
	},
}

// simulationRequest turns explicitly set flags into overrides; unset flags
// leave the configured defaults in place.
func simulationRequest(cmd *cobra.Command, datasetID string) planner.SimulationRequest {
	req := planner.SimulationRequest{DatasetID: datasetID, Orders: orders}
	flags := cmd.Flags()
	if flags.Changed("return-rate") {
		req.ReturnRatePct = &returnRatePct
	}
	if flags.Changed("delay-min") {
		req.DelayMinDays = &delayMinDays
	}
	if flags.Changed("delay-max") {
		req.DelayMaxDays = &delayMaxDays
	}
	if flags.Changed("initial-stock") {
		req.InitialStock = &initialStock
	}
	if flags.Changed("seed") {
		req.Seed = &seed
	}
	if flags.Changed("horizon") {
		req.Horizon = &horizon
	}
	if flags.Changed("reorder-point") || flags.Changed("order-quantity") || flags.Changed("lead-time") {
		r := appConfig.Simulation.Replenishment
		r.Enabled = true
		if flags.Changed("reorder-point") {
			r.ReorderPoint = reorderPoint
		}
		if flags.Changed("order-quantity") {
			r.OrderQuantity = orderQuantity
		}
		if flags.Changed("lead-time") {
			r.LeadTimeDays = leadTimeDays
		}
		req.Replenishment = &r
	}
	return req
}

func printInventory(w io.Writer, a inventory.Analysis) {
	fmt.Fprintln(w, "=== Inventory ===")
	fmt.Fprintf(w, "Avg Daily Usage           : %.2f\n", a.AvgDailyUsage)
	fmt.Fprintf(w, "Std Daily Usage           : %.2f\n", a.StdDailyUsage)
	fmt.Fprintf(w, "Safety Stock              : %.2f\n", a.SafetyStock)
	fmt.Fprintf(w, "Reorder Point             : %.2f\n", a.ReorderPoint)
	fmt.Fprintf(w, "Min Stock Level           : %d\n", a.MinStockLevel)
	if a.NeedsReplenishment {
		fmt.Fprintln(w, "Replenishment needed: stock fell to or below the reorder point.")
	}
}

func printPolicy(w io.Writer, p *inventory.Policy) {
	fmt.Fprintf(w, "Safety Stock @ %.0f%%       : %.2f\n", p.ServiceLevel*100, p.ServiceSafetyStock)
	fmt.Fprintf(w, "Service Reorder Point     : %.2f\n", p.ServiceReorderPoint)
	fmt.Fprintf(w, "Order Quantity (EOQ)      : %.0f\n", p.OrderQuantity)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	addSimulateFlags(simulateCmd)
	_ = simulateCmd.MarkFlagRequired("data")
}

// addSimulateFlags binds the simulate flags to cmd.
func addSimulateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataPath, "data", "", "Order CSV (DataCo export format)")
	cmd.Flags().IntVar(&orders, "orders", 0, "Number of orders to sample (default 1000)")
	cmd.Flags().Float64Var(&returnRatePct, "return-rate", 10, "Return probability in percent")
	cmd.Flags().Int64Var(&delayMinDays, "delay-min", 2, "Minimum random delivery delay in days")
	cmd.Flags().Int64Var(&delayMaxDays, "delay-max", 10, "Maximum random delivery delay in days")
	cmd.Flags().Int64Var(&initialStock, "initial-stock", 10000, "Units on hand at day 0")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for sampling and simulation randomness")
	cmd.Flags().Int64Var(&horizon, "horizon", 0, "Last simulated day (0 runs until every order settles)")
	cmd.Flags().Int64Var(&reorderPoint, "reorder-point", 0, "Enable replenishment at this stock level")
	cmd.Flags().Int64Var(&orderQuantity, "order-quantity", 0, "Units per replenishment order")
	cmd.Flags().Int64Var(&leadTimeDays, "lead-time", 0, "Replenishment lead time in days")
	cmd.Flags().StringVar(&outputPath, "out", "", "Write the full run, including the order ledger, as JSON")
}
