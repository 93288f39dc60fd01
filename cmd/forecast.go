package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/supplychain-copilot/copilot/sim/forecast"
)

var forecastPeriods int // Days to forecast past the last order date

// forecastCmd fits the demand model to a CSV's daily order quantities
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast daily demand from a CSV with order dates",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		info, err := a.loadDataset(dataPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		periods := appConfig.Forecast.Periods
		if cmd.Flags().Changed("periods") {
			periods = forecastPeriods
		}
		points, err := a.planner.Forecast(info.ID, periods)
		if err != nil {
			logrus.Fatalf("Forecast failed: %v", err)
		}
		printForecast(os.Stdout, points)
		if outputPath != "" {
			if err := writeJSON(outputPath, points); err != nil {
				logrus.Fatalf("Writing %s: %v", outputPath, err)
			}
		}
	},
}

// printForecast lists the future points only.
func printForecast(w io.Writer, points []forecast.Point) {
	fmt.Fprintln(w, "=== Demand Forecast ===")
	fmt.Fprintf(w, "%-10s  %10s  %10s  %10s\n", "date", "yhat", "lower", "upper")
	for _, p := range points {
		if !p.IsFuture {
			continue
		}
		fmt.Fprintf(w, "%-10s  %10.2f  %10.2f  %10.2f\n", p.DS.Format(time.DateOnly), p.YHat, p.YHatLower, p.YHatUpper)
	}
}

func init() {
	forecastCmd.Flags().StringVar(&dataPath, "data", "", "Order CSV with an Order Date column")
	forecastCmd.Flags().IntVar(&forecastPeriods, "periods", 30, "Days to forecast")
	forecastCmd.Flags().StringVar(&outputPath, "out", "", "Write history fit and forecast as JSON")
	_ = forecastCmd.MarkFlagRequired("data")
}
