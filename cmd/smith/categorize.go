package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ozbooks/agent-smith/internal/cli"
	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/config"
	"github.com/ozbooks/agent-smith/internal/flow"
	"github.com/ozbooks/agent-smith/internal/llm"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/pocketsmith"
	"github.com/ozbooks/agent-smith/internal/rules"
	"github.com/ozbooks/agent-smith/internal/service"
	"github.com/ozbooks/agent-smith/internal/storage"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize uncategorized transactions",
		Long: `Fetch uncategorized transactions from PocketSmith and run them through
the rule engine with an LLM fallback.

High-confidence decisions are applied automatically (depending on the
intelligence mode), mid-confidence decisions ask for confirmation, and
low-confidence matches are skipped.

Examples:
  smith categorize                      # All uncategorized transactions
  smith categorize --month 2026-07      # Only July 2026
  smith categorize --mode aggressive    # Lower the auto-apply bar
  smith categorize --dry-run            # Evaluate without writing back`,
		RunE: runCategorize,
	}

	cmd.Flags().StringP("month", "m", "", "Specific month to categorize (format: 2026-01)")
	cmd.Flags().String("mode", "smart", "Intelligence mode (conservative, smart, aggressive)")
	cmd.Flags().Bool("dry-run", false, "Evaluate without writing anything back")

	_ = viper.BindPFlag("categorize.month", cmd.Flags().Lookup("month"))
	_ = viper.BindPFlag("categorize.mode", cmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("categorize.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	month := viper.GetString("categorize.month")
	dryRun := viper.GetBool("categorize.dry_run")

	mode, err := model.ParseIntelligenceMode(viper.GetString("categorize.mode"))
	if err != nil {
		return err
	}

	slog.Info("Starting categorization", "mode", mode, "dry_run", dryRun)

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(db)

	engine, err := loadRuleEngine()
	if err != nil {
		return err
	}

	ps, err := pocketsmith.NewClient(ctx, viper.GetString("pocketsmith.api_key"))
	if err != nil {
		return common.NewUserError("could not connect to PocketSmith (check pocketsmith.api_key)", err)
	}

	// Without an LLM key the run degrades to rules-only: misses are
	// skipped instead of failing the whole command.
	var classifier flow.Classifier
	if viper.GetString("llm.api_key") == "" {
		slog.Warn("No llm.api_key configured, running rules-only")
		fmt.Println(cli.WarningStyle.Render("No LLM key configured: transactions without a rule match will be skipped"))
	} else {
		c, err := createClassifier()
		if err != nil {
			return fmt.Errorf("failed to create LLM classifier: %w", err)
		}
		defer func() {
			if closeErr := c.Close(); closeErr != nil {
				slog.Warn("Failed to close classifier", "error", closeErr)
			}
		}()
		classifier = c
	}

	filter := service.TransactionFilter{Uncategorized: true}
	if month != "" {
		parsed, parseErr := time.Parse("2006-01", month)
		if parseErr != nil {
			return fmt.Errorf("invalid month format (use YYYY-MM): %w", parseErr)
		}
		end := parsed.AddDate(0, 1, -1)
		filter.StartDate = &parsed
		filter.EndDate = &end
	}

	// Rate-limited fetches back off and retry; anything else fails fast.
	var transactions []model.Transaction
	err = common.WithRetry(ctx, func() error {
		var fetchErr error
		transactions, fetchErr = ps.GetTransactions(ctx, filter)
		if fetchErr != nil {
			return &common.RetryableError{Err: fetchErr, Retryable: common.IsRetryable(fetchErr)}
		}
		return nil
	}, service.RetryOptions{MaxAttempts: 3, InitialDelay: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatSuccess("Nothing to categorize"))
		return nil
	}

	categories, err := ps.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}

	bar := progressbar.NewOptions(len(transactions),
		progressbar.OptionSetDescription("categorizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var updater service.TransactionUpdater
	var audit service.Storage
	if !dryRun {
		updater = ps
		audit = db
	}

	f := flow.New(engine, classifier, cli.NewPrompter(nil, nil), audit, updater, flow.Config{
		Mode: mode,
		Progress: func(processed, _ int) {
			_ = bar.Set(processed)
		},
	})

	result, err := f.ProcessBatch(ctx, transactions, categories)
	if err != nil {
		return fmt.Errorf("categorization aborted: %w", err)
	}
	_ = bar.Finish()

	if result.External != nil {
		fmt.Println(cli.WarningStyle.Render(fmt.Sprintf(
			"Batch too large to run inline: %d transactions (~%d tokens) need LLM review.\nRun again in smaller slices with --month, or dispatch the delegated batch.",
			len(result.External.TransactionIDs), result.External.EstimatedTokens)))
		return nil
	}

	stats := result.Stats
	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Done: %d transactions — %d auto-applied, %d confirmed, %d skipped, %d LLM calls, %d rules proposed (%s)",
		stats.TotalTransactions, stats.AutoApplied, stats.UserConfirmed,
		stats.Skipped, stats.LLMCalls, stats.RulesProposed,
		stats.Duration.Round(time.Millisecond))))

	// Dry runs persist nothing, so report the in-memory match counts here.
	if counts := f.Stats().Counts(); dryRun && len(counts) > 0 {
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println(cli.SubtleStyle.Render("Rule matches (not persisted):"))
		for _, name := range names {
			fmt.Printf("  %-30s %d\n", name, counts[name])
		}
	}

	return nil
}

func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "~/.local/share/smith/smith.db"
	}
	dbPath = config.ExpandPath(dbPath)

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func closeStorage(db *storage.SQLiteStorage) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func loadRuleEngine() (*rules.Engine, error) {
	file, err := loadRuleFile()
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded rules",
		"category_rules", len(file.CategoryRules),
		"label_rules", len(file.LabelRules),
		"path", rulePath())

	return rules.NewEngine(file.CategoryRules, file.LabelRules), nil
}

func createClassifier() (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider:  viper.GetString("llm.provider"),
		APIKey:    viper.GetString("llm.api_key"),
		Model:     viper.GetString("llm.model"),
		RateLimit: viper.GetInt("llm.rate_limit"),
		MaxTokens: viper.GetInt("llm.max_tokens"),
	}
	return llm.NewClassifier(cfg, slog.Default())
}
