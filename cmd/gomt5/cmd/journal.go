package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gomt5/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded execution outcomes",
	Long: `List execution records from the SQLite journal, newest first.

Examples:
  gomt5 journal --db ./executions.db
  gomt5 journal --db ./executions.db --account demo --limit 10`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

var (
	journalDBPath  string
	journalAccount string
	journalLimit   int
)

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVarP(&journalDBPath, "db", "d", "", "path to the SQLite journal (default: journal.path from config)")
	journalCmd.Flags().StringVarP(&journalAccount, "account", "a", "", "filter by account name")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "maximum records to list")
}

func runJournal(cmd *cobra.Command, args []string) error {
	path := journalDBPath
	if path == "" && cfg.Journal.Type == "sqlite" {
		path = cfg.Journal.Path
	}
	if path == "" {
		return fmt.Errorf("no journal database: pass --db or configure journal.type=sqlite")
	}

	j, err := journal.NewSQLite(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	recs, err := j.ListExecutions(journalAccount, journalLimit)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	if len(recs) == 0 {
		fmt.Println("no executions recorded")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%s %-10s %-10s %-10s %.2f @ %.5f retcode=%d ticket=%d %s\n",
			rec.Time.Format("2006-01-02 15:04:05"), rec.Account, rec.Symbol,
			rec.Type, rec.Volume, rec.Price, rec.Retcode, rec.Ticket, rec.Comment)
	}
	return nil
}
