package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/supplychain-copilot/copilot/sim/route"
)

var (
	problemPath string // YAML or JSON route problem
	vehicles    int    // Overrides the fleet size
	capacity    int64  // Overrides the per-vehicle capacity
)

// routeCmd plans delivery tours for a depot and its stops
var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Plan capacity-constrained delivery routes",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		var problem route.Problem
		switch {
		case problemPath != "":
			p, err := loadProblem(problemPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			problem = *p
		case appConfig.Fleet != nil:
			problem = *appConfig.Fleet
			problem.Stops = append([]route.Stop(nil), appConfig.Fleet.Stops...)
		default:
			logrus.Fatalf("No route problem: pass --problem or set fleet in the config file")
		}
		if cmd.Flags().Changed("vehicles") {
			problem.Vehicles = vehicles
		}
		if cmd.Flags().Changed("capacity") {
			problem.VehicleCapacity = capacity
		}

		plan, err := a.planner.OptimizeRoute(problem)
		if err != nil {
			logrus.Fatalf("Route optimisation failed: %v", err)
		}
		printPlan(os.Stdout, plan)
		if outputPath != "" {
			if err := writeJSON(outputPath, plan); err != nil {
				logrus.Fatalf("Writing %s: %v", outputPath, err)
			}
		}
	},
}

// loadProblem decodes a route problem; JSON is valid YAML so both work.
func loadProblem(path string) (*route.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading route problem: %w", err)
	}
	var p route.Problem
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing route problem %s: %w", path, err)
	}
	return &p, nil
}

func printPlan(w io.Writer, plan *route.Plan) {
	fmt.Fprintln(w, "=== Delivery Routes ===")
	for _, r := range plan.Routes {
		fmt.Fprintf(w, "Vehicle %d: depot -> %s -> depot | load %d | %.2f km | %s\n",
			r.Vehicle, strings.Join(r.Stops, " -> "), r.Load, r.DistanceKm, r.Duration.Round(time.Minute))
	}
	fmt.Fprintf(w, "Total Distance (km)       : %.2f\n", plan.TotalDistanceKm)
	if len(plan.Unassigned) > 0 {
		fmt.Fprintf(w, "Unassigned Stops          : %s\n", strings.Join(plan.Unassigned, ", "))
	}
}

func init() {
	routeCmd.Flags().StringVar(&problemPath, "problem", "", "YAML or JSON file with depot, stops, vehicles and vehicle_capacity")
	routeCmd.Flags().IntVar(&vehicles, "vehicles", 1, "Number of vehicles")
	routeCmd.Flags().Int64Var(&capacity, "capacity", 0, "Units per vehicle")
	routeCmd.Flags().StringVar(&outputPath, "out", "", "Write the plan as JSON")
}
