package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wishfund",
	Short: "Collective gift funding service",
	Long: `Wishfund lets friends chip in on wishlist items. Pledges above an
item's target flow on to the other items of the same wishlist by priority.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
