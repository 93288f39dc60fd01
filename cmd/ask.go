package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	askTimeout time.Duration // Bound on the chat-model call
	askJSON    bool          // Print the full answer as JSON
)

// askCmd answers a plain-English planning question
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the copilot a planning question in plain English",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.close()

		if dataPath != "" {
			if _, err := a.loadDataset(dataPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()

		ans, err := a.copilot().Ask(ctx, strings.Join(args, " "))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(ans); err != nil {
				logrus.Fatalf("Encoding answer: %v", err)
			}
			return
		}
		fmt.Printf("[%s via %s]\n%s\n", ans.Intent.Operation, ans.Intent.Source, ans.Summary)
	},
}

func init() {
	askCmd.Flags().StringVar(&dataPath, "data", "", "Order CSV the question is about")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", time.Minute, "Time limit for answering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the intent, summary and data as JSON")
}
