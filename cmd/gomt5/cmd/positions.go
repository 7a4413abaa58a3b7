package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gomt5/info"
	"github.com/rustyeddy/gomt5/terminal"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions and pending orders",
	Args:  cobra.NoArgs,
	RunE:  runPositions,
}

var (
	positionsAccount string
	positionsSymbol  string
)

func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().StringVarP(&positionsAccount, "account", "a", "", "account name (default: first configured)")
	positionsCmd.Flags().StringVarP(&positionsSymbol, "symbol", "s", "", "filter by symbol")
}

func runPositions(cmd *cobra.Command, args []string) error {
	sess, _, err := connectAccount(cmd, positionsAccount)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	client := info.New(sess)
	sel := terminal.Selector{Symbol: positionsSymbol}

	positions, err := client.Positions(sel)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
	}
	for _, p := range positions {
		fmt.Printf("position %d %s %s %.2f @ %.5f now %.5f sl=%.5f tp=%.5f profit=%.2f\n",
			p.Ticket, p.Symbol, p.Type, p.Volume, p.Open, p.Current, p.SL, p.TP, p.Profit)
	}

	orders, err := client.Orders(sel)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("no pending orders")
	}
	for _, o := range orders {
		fmt.Printf("pending  %d %s %s %.2f @ %.5f sl=%.5f tp=%.5f\n",
			o.Ticket, o.Symbol, o.Type, o.Volume, o.Price, o.SL, o.TP)
	}
	return nil
}
