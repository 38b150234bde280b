package cli

import (
	"github.com/spf13/cobra"

	"marketdw/internal/app"
)

var predictDryRun bool

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the price prediction pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunPrediction(cmd.Context(), app.PredictOptions{
			DryRun: predictDryRun,
		})
	},
}

func init() {
	predictCmd.Flags().BoolVar(&predictDryRun, "dry-run", false, "Print forecasts instead of replacing the predictions table")
}
