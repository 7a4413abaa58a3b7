package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/gomt5/config"
	"github.com/rustyeddy/gomt5/journal"
	"github.com/rustyeddy/gomt5/order"
	"github.com/rustyeddy/gomt5/session"
	"github.com/rustyeddy/gomt5/terminal"
	"github.com/rustyeddy/gomt5/terminal/bridge"
	"github.com/rustyeddy/gomt5/terminal/sim"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	demoMode bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gomt5",
	Short: "A command-line client for MetaTrader-style trading terminals",
	Long: `gomt5 drives a locally running trading terminal: it connects accounts,
submits and manages orders, and inspects positions and execution history.

Accounts and terminal settings come from a YAML (or JSON) config file;
passwords may reference environment variables with ${VAR} and are loaded
from a .env file when one is present.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file with credentials")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "use the built-in simulated terminal")
}

func setup(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine; an unreadable one is not.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}

	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if cfgFile == "" {
		cfg = config.Default()
		if demoMode {
			cfg.Accounts = demoAccounts()
		}
		return nil
	}
	loaded, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func demoAccounts() []config.AccountConfig {
	return []config.AccountConfig{
		{Name: "demo", Login: 11111, Password: "demo", Server: "Demo"},
	}
}

// openGateway builds a gateway handle: the built-in simulator in demo mode,
// the terminal bridge otherwise.
func openGateway() (terminal.Gateway, error) {
	if demoMode {
		return demoSim(), nil
	}
	addr := cfg.Terminal.Address
	if addr == "" {
		return nil, fmt.Errorf("terminal.address not configured (or pass --demo)")
	}
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	timeout, err := cfg.Terminal.ParseTimeout()
	if err != nil {
		return nil, err
	}
	return bridge.Dial(network, addr, bridge.WithTimeout(timeout), bridge.WithLogger(slog.Default()))
}

func demoSim() *sim.Sim {
	gw := sim.New()
	for _, acct := range cfg.Accounts {
		gw.AddAccount(acct.Login, acct.Password, acct.Server, 100_000)
	}
	gw.AddSymbol(terminal.SymbolInfo{
		Name: "EURUSD", Description: "Euro vs US Dollar", Digits: 5, Point: 0.00001,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, ContractSize: 100_000,
	}, 1.0849, 1.0851)
	gw.AddSymbol(terminal.SymbolInfo{
		Name: "GBPUSD", Description: "Pound vs US Dollar", Digits: 5, Point: 0.00001,
		VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, ContractSize: 100_000,
	}, 1.2649, 1.2652)
	return gw
}

// connectAccount opens a session logged into the named account. An empty
// name picks the first configured account.
func connectAccount(cmd *cobra.Command, name string) (*session.Session, config.AccountConfig, error) {
	acct, err := pickAccount(name)
	if err != nil {
		return nil, config.AccountConfig{}, err
	}

	gw, err := openGateway()
	if err != nil {
		return nil, config.AccountConfig{}, err
	}

	sess := session.New(gw, session.WithConfig(sessionConfig()))
	creds := &session.Credentials{Login: acct.Login, Password: acct.Password, Server: acct.Server}
	path := acct.Path
	if path == "" {
		path = cfg.Terminal.Path
	}
	if err := sess.Connect(cmd.Context(), creds, path); err != nil {
		return nil, config.AccountConfig{}, err
	}
	return sess, acct, nil
}

func pickAccount(name string) (config.AccountConfig, error) {
	if len(cfg.Accounts) == 0 {
		return config.AccountConfig{}, fmt.Errorf("no accounts configured")
	}
	if name == "" {
		return cfg.Accounts[0], nil
	}
	acct, ok := cfg.Account(name)
	if !ok {
		return config.AccountConfig{}, fmt.Errorf("unknown account %q", name)
	}
	return acct, nil
}

func sessionConfig() session.Config {
	timeout, _ := cfg.Terminal.ParseTimeout()
	delay, _ := cfg.Terminal.ParseRetryDelay()
	return session.Config{
		Retries:    cfg.Terminal.Retries,
		RetryDelay: delay,
		Timeout:    timeout,
		Portable:   cfg.Terminal.Portable,
		LaunchWait: 5 * time.Second,
	}
}

// newExecutor wires the configured journal and order defaults around sess.
func newExecutor(sess *session.Session, account string) (*order.Executor, func(), error) {
	var j journal.Journal = journal.Nop{}
	switch cfg.Journal.Type {
	case "sqlite":
		sj, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		j = sj
	case "csv":
		cj, err := journal.NewCSV(cfg.Journal.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		j = cj
	}

	exec := order.New(sess,
		order.WithConfig(order.Config{Magic: cfg.Defaults.Magic, Deviation: cfg.Defaults.Deviation}),
		order.WithJournal(j, account),
		order.WithLogger(slog.Default()),
	)
	cleanup := func() {
		if err := j.Close(); err != nil {
			slog.Warn("journal close failed", "err", err)
		}
	}
	return exec, cleanup, nil
}
