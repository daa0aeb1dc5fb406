package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/gavel/internal/cache"
	"github.com/dshills/gavel/internal/config"
	"github.com/dshills/gavel/internal/github"
	"github.com/dshills/gavel/internal/gitctx"
	"github.com/dshills/gavel/internal/logx"
	"github.com/dshills/gavel/internal/output"
	"github.com/dshills/gavel/internal/providers"
	"github.com/dshills/gavel/internal/redact"
	"github.com/dshills/gavel/internal/review"
	"github.com/dshills/gavel/internal/threads"
)

// Shared review flags
var (
	flagProvider   string
	flagModel      string
	flagFormat     string
	flagOut        string
	flagFailOn     string
	flagPolicy     string
	flagLanguage   string
	flagWarnBudget int
	flagMaxFiles   int
	flagMaxDiff    int
	flagMaxIssues  int
	flagNoCache    bool
	flagNoRedact   bool
)

// PR-specific flags
var (
	flagOwner  string
	flagRepo   string
	flagDryRun bool
)

var flagMergeBase bool

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit code policy (verdict, never)")
	cmd.Flags().StringVar(&flagPolicy, "policy", "", "Review policy YAML file")
	cmd.Flags().StringVar(&flagLanguage, "language", "", "Natural language for findings (default: detect)")
	cmd.Flags().IntVar(&flagWarnBudget, "warn-budget", -1, "Maximum warn findings before rejection")
	cmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "Maximum number of files to review")
	cmd.Flags().IntVar(&flagMaxDiff, "max-diff-bytes", 0, "Skip files with diffs larger than this")
	cmd.Flags().IntVar(&flagMaxIssues, "max-issues", 0, "Maximum findings accepted per file")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the model response cache")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagPolicy != "" {
		m["policyFile"] = flagPolicy
	}
	if flagLanguage != "" {
		m["language"] = flagLanguage
	}
	if flagWarnBudget >= 0 {
		m["warnBudget"] = strconv.Itoa(flagWarnBudget)
	}
	if flagMaxFiles > 0 {
		m["maxFilesToReview"] = strconv.Itoa(flagMaxFiles)
	}
	if flagMaxDiff > 0 {
		m["maxDiffBytes"] = strconv.Itoa(flagMaxDiff)
	}
	if flagMaxIssues > 0 {
		m["maxIssuesPerFile"] = strconv.Itoa(flagMaxIssues)
	}
	if flagOwner != "" {
		m["github.owner"] = flagOwner
	}
	if flagRepo != "" {
		m["github.repo"] = flagRepo
	}
	return m
}

// signalContext returns a context cancelled by SIGINT/SIGTERM so every
// in-flight provider and platform call aborts cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadPolicy(cfg config.Config) (review.Policy, error) {
	if cfg.PolicyFile == "" {
		return review.DefaultPolicy(), nil
	}
	return review.LoadPolicy(cfg.PolicyFile)
}

// buildPlanner assembles the engine and planner from the effective config.
func buildPlanner(cfg config.Config, policy review.Policy) (*review.Planner, error) {
	provider, err := providers.New(cfg.Provider)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = providers.DefaultModel(cfg.Provider)
	}

	c, err := cache.New(cfg.Cache.Enabled && !flagNoCache, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	engine := review.NewEngine(provider, model, cfg.MaxChunkBytes, c)
	return &review.Planner{
		Reviewer:         engine,
		Policy:           policy,
		MaxFilesToReview: cfg.MaxFilesToReview,
		MaxDiffBytes:     cfg.MaxDiffBytes,
		MaxIssuesPerFile: cfg.MaxIssuesPerFile,
		WarnBudget:       cfg.WarnBudget,
		Language:         cfg.Language,
	}, nil
}

func applyRedaction(cfg config.Config, diffs []review.FileDiff) {
	if flagNoRedact {
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
		return
	}
	if cfg.Privacy.RedactSecrets {
		redact.FileDiffs(diffs, cfg.Privacy.RedactPaths)
	}
}

// existingComments maps file paths to the review comments already present,
// so the model does not repeat them. The ledger is machine state, not a
// comment worth echoing.
func existingComments(ts []threads.Thread) map[string][]string {
	m := make(map[string][]string)
	for _, t := range ts {
		if t.Path == "" || (t.Tag != nil && t.Tag.Ledger) {
			continue
		}
		body := t.Body()
		if body == "" {
			continue
		}
		if i := strings.IndexByte(body, '\n'); i > 0 {
			body = body[:i]
		}
		m[t.Path] = append(m[t.Path], body)
	}
	return m
}

func writeReport(cfg config.Config, report *review.Report) {
	if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
	}
}

// applyVerdict maps the plan verdict to the process exit code unless the
// failOn policy disables gating.
func applyVerdict(cfg config.Config, result review.PlanResult) {
	if cfg.FailOn == "never" || cfg.FailOn == "none" {
		return
	}
	if !result.Approve {
		exitCode = ExitRejected
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if providers.IsAuthError(err) {
		exitCode = ExitAuthError
		return
	}
	exitCode = ExitRuntimeError
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long:  "Review code changes with an LLM. Use subcommands to pick what to review.",
}

var reviewPRCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Review a GitHub pull request and reconcile its comment threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid PR number %q", args[0])
		}

		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		setupLogging(cfg)

		policy, err := loadPolicy(cfg)
		if err != nil {
			fail(err)
			return nil
		}

		owner, repo := cfg.GitHub.Owner, cfg.GitHub.Repo
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

		start := time.Now()

		// Preconditions: head/base SHA and a nonzero iteration, before any
		// model call.
		pc, err := client.PullContext(ctx)
		if err != nil {
			fail(err)
			return nil
		}

		diffs, err := client.Files(ctx)
		if err != nil {
			fail(err)
			return nil
		}
		applyRedaction(cfg, diffs)

		store := github.NewStore(client, pc.HeadSHA)
		existing, err := store.ListThreads(ctx)
		if err != nil {
			fail(err)
			return nil
		}

		planner, err := buildPlanner(cfg, policy)
		if err != nil {
			fail(err)
			return nil
		}

		result, err := planner.Plan(ctx, pc.Iteration, diffs, existingComments(existing), review.Metadata{
			Title:          pc.Title,
			Description:    pc.Description,
			CommitMessages: pc.CommitMessages,
		})
		if err != nil {
			fail(err)
			return nil
		}

		report := &review.Report{
			Tool:      "gavel",
			Version:   version,
			Mode:      "pr",
			Target:    fmt.Sprintf("%s/%s#%d", owner, repo, number),
			FilesSeen: len(diffs),
			Result:    result,
			ElapsedMs: time.Since(start).Milliseconds(),
		}
		writeReport(cfg, report)

		if flagDryRun {
			logx.Info().Msg("dry run; skipping thread reconciliation")
		} else {
			outcome, err := threads.NewReconciler(store).Run(ctx, result)
			if err != nil {
				fail(err)
				return nil
			}
			logx.Info().
				Int("created", outcome.Created).
				Int("retriggered", outcome.Retriggered).
				Int("reactivated", outcome.Reactivated).
				Int("resolved", outcome.Resolved).
				Msg("threads reconciled")
		}

		applyVerdict(cfg, result)
		return nil
	},
}

// runLocal plans a review over local diffs without touching any platform
// threads. Iteration 0 marks a plan that was never reconciled.
func runLocal(mode, target string, diffs []review.FileDiff, meta review.Metadata) error {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return err
	}
	setupLogging(cfg)

	policy, err := loadPolicy(cfg)
	if err != nil {
		fail(err)
		return nil
	}
	applyRedaction(cfg, diffs)

	planner, err := buildPlanner(cfg, policy)
	if err != nil {
		fail(err)
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	result, err := planner.Plan(ctx, 0, diffs, nil, meta)
	if err != nil {
		fail(err)
		return nil
	}

	meta2, _ := gitctx.GetRepoMeta()
	report := &review.Report{
		Tool:      "gavel",
		Version:   version,
		Mode:      mode,
		Target:    target,
		Repo:      meta2.Root,
		Branch:    meta2.Branch,
		FilesSeen: len(diffs),
		Result:    result,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	writeReport(cfg, report)
	applyVerdict(cfg, result)
	return nil
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		diffs, err := gitctx.Staged(gitctx.DiffOptions{})
		if err != nil {
			fail(err)
			return nil
		}
		return runLocal("staged", "", diffs, review.Metadata{})
	},
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	RunE: func(cmd *cobra.Command, args []string) error {
		diffs, err := gitctx.Unstaged(gitctx.DiffOptions{})
		if err != nil {
			fail(err)
			return nil
		}
		return runLocal("unstaged", "", diffs, review.Metadata{})
	},
}

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		diffs, err := gitctx.Range(args[0], flagMergeBase, gitctx.DiffOptions{})
		if err != nil {
			fail(err)
			return nil
		}
		var msgs []string
		if commits, err := gitctx.ListCommits(args[0], flagMergeBase); err == nil {
			for _, c := range commits {
				msgs = append(msgs, c.Subject)
			}
		}
		return runLocal("range", args[0], diffs, review.Metadata{CommitMessages: msgs})
	},
}

func init() {
	reviewCmd.AddCommand(reviewPRCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewUnstagedCmd)
	reviewCmd.AddCommand(reviewRangeCmd)

	for _, cmd := range []*cobra.Command{
		reviewPRCmd,
		reviewStagedCmd,
		reviewUnstagedCmd,
		reviewRangeCmd,
	} {
		addReviewFlags(cmd)
	}

	reviewPRCmd.Flags().StringVar(&flagOwner, "owner", "", "GitHub repository owner (default: detect from git remote)")
	reviewPRCmd.Flags().StringVar(&flagRepo, "repo", "", "GitHub repository name (default: detect from git remote)")
	reviewPRCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Plan and report without posting any comments")

	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")
}
