package cli

import (
	"github.com/spf13/cobra"
)

var stocksCmd = &cobra.Command{
	Use:   "stocks",
	Short: "Run the stock snapshot pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunStockSnapshot(cmd.Context())
	},
}
