package cli

import (
	"github.com/spf13/cobra"
)

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "Run the coin snapshot pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunCoinSnapshot(cmd.Context())
	},
}
