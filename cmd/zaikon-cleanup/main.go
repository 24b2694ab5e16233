// Command zaikon-cleanup deletes inactive or orphaned users and expired
// records once, then exits.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukerupert/zaikon/internal/cleanup"
	"github.com/dukerupert/zaikon/internal/config"
	"github.com/dukerupert/zaikon/internal/database"
	"github.com/dukerupert/zaikon/internal/logging"
	"github.com/dukerupert/zaikon/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	cleanup.Options
	configPath string
	force      bool
}

func parseFlags(args []string, getenv func(string) string) (options, error) {
	var o options
	fs := flag.NewFlagSet("zaikon-cleanup", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", getenv("ZAIKON_CONFIG"), "path to the YAML config file")
	fs.IntVar(&o.InactiveDays, "days", 0, "delete users inactive for this many days (0 skips the rule)")
	fs.BoolVar(&o.Orphaned, "orphaned", false, "delete users who belong to no location")
	fs.BoolVar(&o.DryRun, "dry-run", false, "report what would be deleted without deleting")
	fs.BoolVar(&o.force, "force", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.InactiveDays < 0 {
		return o, fmt.Errorf("-days must not be negative")
	}
	return o, nil
}

func run(args []string, stdin io.Reader, stdout io.Writer, getenv func(string) string) error {
	o, err := parseFlags(args, getenv)
	if err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath, getenv)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("component", "cleanup")

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sweeper := cleanup.NewSweeper(
		store.NewUserStore(db),
		store.NewPurchaseStore(db),
		store.NewSessionStore(db, cfg.SessionTTL),
		store.NewLoginCodeStore(db),
		logger,
	)
	return sweep(sweeper, o, stdin, stdout)
}

func sweep(sweeper *cleanup.Sweeper, o options, stdin io.Reader, stdout io.Writer) error {
	candidates, err := sweeper.Candidates(o.Options)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d user(s) selected\n", len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(stdout, "  %d\t%s\t%s\tlast active %s\t%s\n",
			c.ID, c.UserName, c.Email, c.LastActive.Format("2006-01-02"), c.Reason)
	}

	if !o.DryRun && !o.force && len(candidates) > 0 {
		fmt.Fprint(stdout, "Delete these users and everything they own? [y/N] ")
		answer, _ := bufio.NewReader(stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(stdout, "aborted")
			return nil
		}
	}

	report, err := sweeper.Run(o.Options)
	if err != nil {
		return err
	}
	if report.DryRun {
		fmt.Fprintf(stdout, "dry run: %d expired purchase(s) would be deleted\n", report.ExpiredPurchases)
		return nil
	}
	fmt.Fprintf(stdout, "deleted %d user(s), %d location(s), %d expired purchase(s), %d session(s), %d login code(s)\n",
		report.DeletedUsers, report.DeletedLocations, report.ExpiredPurchases, report.ExpiredSessions, report.ExpiredLoginCodes)
	return nil
}
