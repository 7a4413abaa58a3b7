package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gomt5/info"
	"github.com/rustyeddy/gomt5/terminal"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [group]",
	Short: "List instruments and their latest quotes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSymbols,
}

var symbolsAccount string

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().StringVarP(&symbolsAccount, "account", "a", "", "account name (default: first configured)")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	group := ""
	if len(args) == 1 {
		group = args[0]
	}

	sess, _, err := connectAccount(cmd, symbolsAccount)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	client := info.New(sess)
	names, err := client.Symbols(group)
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		sym, err := client.Symbol(name)
		if err != nil {
			fmt.Printf("%-10s unavailable: %v\n", name, err)
			continue
		}
		tick, err := client.Tick(name)
		if err != nil {
			fmt.Printf("%-10s no quote: %v\n", name, err)
			continue
		}
		fmt.Printf("%-10s bid=%.*f ask=%.*f digits=%d lots=[%.2f, %.2f] fill=%s\n",
			name, sym.Digits, tick.Bid, sym.Digits, tick.Ask, sym.Digits,
			sym.VolumeMin, sym.VolumeMax, fillModes(sym))
	}
	return nil
}

func fillModes(sym *terminal.SymbolInfo) string {
	switch {
	case sym.FillingMode&terminal.FillingIOC != 0 && sym.FillingMode&terminal.FillingFOK != 0:
		return "fok|ioc"
	case sym.FillingMode&terminal.FillingIOC != 0:
		return "ioc"
	case sym.FillingMode&terminal.FillingFOK != 0:
		return "fok"
	default:
		return "return"
	}
}
