package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ozbooks/agent-smith/internal/cli"
	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/config"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage the declarative rule set",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesProposalsCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active category and label rules with match counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			file, err := loadRuleFile()
			if err != nil {
				return err
			}

			db, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(db)

			counts, err := db.GetRuleMatchCounts(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render("Category rules (evaluation order)"))
			for i, rule := range file.CategoryRules {
				fmt.Printf("  %2d. %-30s → %-25s conf=%3d matches=%d\n",
					i+1, rule.Name, rule.Category, rule.Confidence, counts[rule.Name])
			}

			fmt.Println(cli.TitleStyle.Render("Label rules (all matches apply)"))
			for _, rule := range file.LabelRules {
				fmt.Printf("      %-30s → [%s]\n", rule.Name, strings.Join(rule.Labels, ", "))
			}

			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <payee>",
		Short: "Evaluate a sample payee against the rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := cmd.Flags().GetFloat64("amount")
			account, _ := cmd.Flags().GetString("account")

			file, err := loadRuleFile()
			if err != nil {
				return err
			}

			engine := rules.NewEngine(file.CategoryRules, file.LabelRules)
			txn := model.Transaction{
				Payee:     args[0],
				Amount:    amount,
				AccountID: account,
				Date:      time.Now(),
			}

			result := engine.CategorizeAndLabel(txn)
			if result.Source == model.SourceNone {
				fmt.Println(cli.FormatError("this payee would fall through to the LLM"))
				return fmt.Errorf("%w: %q", common.ErrNoRuleMatch, args[0])
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("category=%s confidence=%d labels=[%s]",
				result.Category, result.Confidence, strings.Join(result.Labels, ", "))))
			return nil
		},
	}

	cmd.Flags().Float64("amount", -10.00, "Transaction amount to test with")
	cmd.Flags().String("account", "", "Account id to test with")

	return cmd
}

func rulesProposalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Review rule candidates learned from LLM decisions",
		Long: `Rule candidates proposed from high-confidence LLM decisions are held
pending approval; nothing reaches the active rule file without it.

Use --approve <id> to move a candidate into the rule file, --reject <id>
to discard it, or no flags to list what is pending.`,
		RunE: runRuleProposals,
	}

	cmd.Flags().Int64("approve", 0, "Approve the candidate with this id")
	cmd.Flags().Int64("reject", 0, "Reject the candidate with this id")

	return cmd
}

func runRuleProposals(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	approveID, _ := cmd.Flags().GetInt64("approve")
	rejectID, _ := cmd.Flags().GetInt64("reject")

	db, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(db)

	candidates, err := db.GetPendingRuleCandidates(ctx)
	if err != nil {
		return err
	}

	switch {
	case approveID != 0:
		for _, c := range candidates {
			if c.ID != approveID {
				continue
			}
			store := rules.NewStore(rulePath())
			if err := store.Append(c.Rule); err != nil {
				return fmt.Errorf("failed to append rule: %w", err)
			}
			if err := db.DeleteRuleCandidate(ctx, c.ID); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("approved %q → %s", c.Rule.Name, c.Rule.Category)))
			return nil
		}
		return fmt.Errorf("no pending candidate with id %d", approveID)

	case rejectID != 0:
		if err := db.DeleteRuleCandidate(ctx, rejectID); err != nil {
			return err
		}
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("rejected candidate %d", rejectID)))
		return nil

	default:
		if len(candidates) == 0 {
			fmt.Println(cli.SubtleStyle.Render("no pending rule candidates"))
			return nil
		}
		fmt.Println(cli.TitleStyle.Render("Pending rule candidates"))
		for _, c := range candidates {
			fmt.Printf("  [%d] %-30s → %-25s conf=%3d from %q\n",
				c.ID, c.Rule.Name, c.Rule.Category, c.Rule.Confidence, c.Payee)
			if c.Reasoning != "" {
				fmt.Printf("      %s\n", cli.SubtleStyle.Render(c.Reasoning))
			}
		}
		return nil
	}
}

func rulePath() string {
	path := viper.GetString("rules.path")
	if path == "" {
		path = "~/.config/smith/rules.yaml"
	}
	return config.ExpandPath(path)
}

func loadRuleFile() (*rules.RuleFile, error) {
	return rules.NewStore(rulePath()).Load()
}
