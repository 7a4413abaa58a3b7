package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order <symbol>",
	Short: "Submit an order",
	Long: `Submit a market, limit, or stop order for a symbol.

Examples:
  gomt5 order EURUSD --side buy --volume 0.1 --sl 1.0950 --tp 1.1100
  gomt5 order EURUSD --side sell --type limit --price 1.1100 --volume 0.5
  gomt5 order EURUSD --side buy --volume 0.1 --check`,
	Args: cobra.ExactArgs(1),
	RunE: runOrder,
}

var (
	orderAccount   string
	orderSide      string
	orderType      string
	orderVolume    float64
	orderPrice     float64
	orderSL        float64
	orderTP        float64
	orderDeviation int
	orderComment   string
	orderCheck     bool
)

func init() {
	rootCmd.AddCommand(orderCmd)

	orderCmd.Flags().StringVarP(&orderAccount, "account", "a", "", "account name (default: first configured)")
	orderCmd.Flags().StringVar(&orderSide, "side", "", "buy or sell (required)")
	orderCmd.Flags().StringVar(&orderType, "type", "market", "market, limit, or stop")
	orderCmd.Flags().Float64VarP(&orderVolume, "volume", "v", 0, "volume in lots (required)")
	orderCmd.Flags().Float64VarP(&orderPrice, "price", "p", 0, "entry price, required for limit and stop")
	orderCmd.Flags().Float64Var(&orderSL, "sl", 0, "stop-loss price")
	orderCmd.Flags().Float64Var(&orderTP, "tp", 0, "take-profit price")
	orderCmd.Flags().IntVar(&orderDeviation, "deviation", 0, "max slippage in points (default from config)")
	orderCmd.Flags().StringVar(&orderComment, "comment", "", "order comment")
	orderCmd.Flags().BoolVar(&orderCheck, "check", false, "validate against the server without executing")

	_ = orderCmd.MarkFlagRequired("side")
	_ = orderCmd.MarkFlagRequired("volume")
}

func runOrder(cmd *cobra.Command, args []string) error {
	symbol := args[0]

	sess, acct, err := connectAccount(cmd, orderAccount)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	exec, cleanup, err := newExecutor(sess, acct.Name)
	if err != nil {
		return err
	}
	defer cleanup()

	b := exec.Order(symbol)
	switch strings.ToLower(orderSide) + "/" + strings.ToLower(orderType) {
	case "buy/market":
		b.MarketBuy(orderVolume)
	case "sell/market":
		b.MarketSell(orderVolume)
	case "buy/limit":
		b.LimitBuy(orderVolume, orderPrice)
	case "sell/limit":
		b.LimitSell(orderVolume, orderPrice)
	case "buy/stop":
		b.StopBuy(orderVolume, orderPrice)
	case "sell/stop":
		b.StopSell(orderVolume, orderPrice)
	default:
		return fmt.Errorf("unknown side/type combination %s/%s", orderSide, orderType)
	}
	if orderSL != 0 || orderTP != 0 {
		b.WithSLTP(orderSL, orderTP)
	}
	if orderDeviation != 0 {
		b.WithDeviation(orderDeviation)
	}
	if orderComment != "" {
		b.WithComment(orderComment)
	}

	if orderCheck {
		chk, err := b.Check(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("check ok: margin=%.2f margin_free=%.2f balance=%.2f\n",
			chk.Margin, chk.MarginFree, chk.Balance)
		return nil
	}

	res, err := b.Send(cmd.Context())
	if err != nil {
		return err
	}
	if res.Recovered {
		fmt.Printf("filled (recovered after transport failure): ticket=%d volume=%.2f\n", res.Ticket, res.Volume)
		return nil
	}
	if strings.ToLower(orderType) == "market" {
		fmt.Printf("filled: ticket=%d deal=%d volume=%.2f price=%.5f\n", res.Ticket, res.Deal, res.Volume, res.Price)
	} else {
		fmt.Printf("placed: ticket=%d volume=%.2f price=%.5f\n", res.Ticket, res.Volume, res.Price)
	}
	return nil
}
