package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close <ticket>",
	Short: "Close an open position, fully or partially",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <ticket>",
	Short: "Delete a pending order",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var (
	closeAccount string
	closeVolume  float64

	cancelAccount string
)

func init() {
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(cancelCmd)

	closeCmd.Flags().StringVarP(&closeAccount, "account", "a", "", "account name (default: first configured)")
	closeCmd.Flags().Float64VarP(&closeVolume, "volume", "v", 0, "volume to close (default: all)")

	cancelCmd.Flags().StringVarP(&cancelAccount, "account", "a", "", "account name (default: first configured)")
}

func runClose(cmd *cobra.Command, args []string) error {
	ticket, err := parseTicket(args[0])
	if err != nil {
		return err
	}

	sess, acct, err := connectAccount(cmd, closeAccount)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	exec, cleanup, err := newExecutor(sess, acct.Name)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := exec.ClosePosition(cmd.Context(), ticket, closeVolume)
	if err != nil {
		return err
	}
	fmt.Printf("closed: ticket=%d volume=%.2f price=%.5f\n", ticket, res.Volume, res.Price)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	ticket, err := parseTicket(args[0])
	if err != nil {
		return err
	}

	sess, acct, err := connectAccount(cmd, cancelAccount)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	exec, cleanup, err := newExecutor(sess, acct.Name)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := exec.Cancel(cmd.Context(), ticket); err != nil {
		return err
	}
	fmt.Printf("cancelled: ticket=%d\n", ticket)
	return nil
}

func parseTicket(s string) (uint64, error) {
	var ticket uint64
	if _, err := fmt.Sscanf(s, "%d", &ticket); err != nil || ticket == 0 {
		return 0, fmt.Errorf("invalid ticket %q", s)
	}
	return ticket, nil
}
