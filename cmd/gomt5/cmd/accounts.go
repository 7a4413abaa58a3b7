package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gomt5/info"
	"github.com/rustyeddy/gomt5/registry"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccounts,
}

var accountsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect every configured account and print its state",
	Args:  cobra.NoArgs,
	RunE:  runAccountsCheck,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsCheckCmd)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	if len(cfg.Accounts) == 0 {
		fmt.Println("no accounts configured")
		return nil
	}
	for _, acct := range cfg.Accounts {
		fmt.Printf("%-12s login=%d server=%s\n", acct.Name, acct.Login, acct.Server)
	}
	return nil
}

func runAccountsCheck(cmd *cobra.Command, args []string) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	reg := registry.New(openGateway,
		registry.WithLogger(slog.Default()),
		registry.WithSessionOptions(session.WithConfig(sessionConfig())),
	)
	defer reg.Close()

	for _, acct := range cfg.Accounts {
		path := acct.Path
		if path == "" {
			path = cfg.Terminal.Path
		}
		creds := session.Credentials{Login: acct.Login, Password: acct.Password, Server: acct.Server}
		if err := reg.AddAccount(cmd.Context(), acct.Name, creds, path); err != nil {
			fmt.Printf("%-12s connect failed: %v\n", acct.Name, err)
		}
	}

	outcomes := reg.ExecuteOnAll(cmd.Context(), func(ctx context.Context, name string, sess *session.Session) (any, error) {
		return info.New(sess).Account()
	})

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out := outcomes[name]
		if out.Err != nil {
			fmt.Printf("%-12s query failed: %v\n", name, out.Err)
			continue
		}
		acct := out.Value.(*terminal.AccountInfo)
		fmt.Printf("%-12s login=%d balance=%.2f equity=%.2f margin_free=%.2f %s\n",
			name, acct.Login, acct.Balance, acct.Equity, acct.MarginFree, acct.Currency)
	}
	return nil
}
