package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/gavel/internal/config"
	"github.com/dshills/gavel/internal/github"
	"github.com/dshills/gavel/internal/threads"
)

var (
	flagThreadsOwner string
	flagThreadsRepo  string
)

var threadsCmd = &cobra.Command{
	Use:   "threads <number>",
	Short: "List gavel's review threads and the findings ledger for a PR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid PR number %q", args[0])
		}

		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		setupLogging(cfg)

		owner, repo := flagThreadsOwner, flagThreadsRepo
		if owner == "" {
			owner = cfg.GitHub.Owner
		}
		if repo == "" {
			repo = cfg.GitHub.Repo
		}
		if owner == "" || repo == "" {
			owner, repo, err = github.DetectRepo()
			if err != nil {
				fail(fmt.Errorf("use --owner/--repo or configure github.owner/github.repo: %w", err))
				return nil
			}
		}

		client, err := github.NewClient(owner, repo, number)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}

		ctx, stop := signalContext()
		defer stop()

		store := github.NewStore(client, "")
		ts, err := store.ListThreads(ctx)
		if err != nil {
			fail(err)
			return nil
		}

		var ledger *threads.Ledger
		bots := 0
		for _, t := range ts {
			if t.Tag == nil {
				continue
			}
			if t.Tag.Ledger {
				if l, ok := threads.ParseLedger(t.Body()); ok {
					ledger = &l
				}
				continue
			}
			bots++
			loc := t.Tag.Path
			if t.Tag.Line > 0 {
				loc = fmt.Sprintf("%s:%d", t.Tag.Path, t.Tag.Line)
			}
			fp := t.Tag.Fingerprint
			if len(fp) > 12 {
				fp = fp[:12]
			}
			fmt.Fprintf(os.Stdout, "%-8s %-8s %-40s %s\n", t.ID, t.Status, loc, fp)
		}
		if bots == 0 {
			fmt.Fprintln(os.Stdout, "No review threads.")
		}

		if ledger != nil {
			data, err := json.MarshalIndent(ledger, "", "  ")
			if err != nil {
				fail(err)
				return nil
			}
			fmt.Fprintf(os.Stdout, "\nLedger:\n%s\n", data)
		}
		return nil
	},
}

func init() {
	threadsCmd.Flags().StringVar(&flagThreadsOwner, "owner", "", "GitHub repository owner (default: detect from git remote)")
	threadsCmd.Flags().StringVar(&flagThreadsRepo, "repo", "", "GitHub repository name (default: detect from git remote)")
}
