package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/priorauth/internal/registry"
	"github.com/solatis/priorauth/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review candidate rules",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates with a review status",
	Args:  cobra.NoArgs,
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <candidate-id>...",
	Short: "Approve DRAFT candidates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReviewTransition(cmd, args, types.ReviewApproved)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <candidate-id>...",
	Short: "Reject DRAFT candidates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReviewTransition(cmd, args, types.ReviewRejected)
	},
}

var reviewAutoApproveCmd = &cobra.Command{
	Use:   "auto-approve",
	Short: "Approve every DRAFT candidate",
	Args:  cobra.NoArgs,
	RunE:  runReviewAutoApprove,
}

var reviewHistoryCmd = &cobra.Command{
	Use:   "history <candidate-id>",
	Short: "Show the transition log of a candidate (sql backend)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewHistory,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewApproveCmd, reviewRejectCmd, reviewAutoApproveCmd, reviewHistoryCmd)

	reviewCmd.PersistentFlags().String("reviewer", "", "reviewer recorded on transitions")
	reviewListCmd.Flags().String("status", string(types.ReviewDraft), "review status (DRAFT, APPROVED, REJECTED)")
	reviewListCmd.Flags().Duration("since", 0, "only list candidates mined within this window (e.g. 24h)")
	reviewApproveCmd.Flags().String("conditions", "", "JSON list of conditions replacing the candidate's conditions")
}

func runReviewList(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("status")
	status, err := types.ParseReviewStatus(name)
	if err != nil {
		return err
	}

	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	candidates, err := reg.ListByStatus(cmd.Context(), status)
	if err != nil {
		return err
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		cutoff := time.Now().Add(-since)
		recent := candidates[:0]
		for _, c := range candidates {
			// Imported registries may carry non-v7 ids; those have no mined time.
			if mined := types.CandidateIDTime(c.ID); !mined.IsZero() && mined.After(cutoff) {
				recent = append(recent, c)
			}
		}
		candidates = recent
	}
	return printJSON(cmd.OutOrStdout(), candidates)
}

// runReviewTransition moves each candidate to status. Malformed ids abort
// before anything changes; unknown or already reviewed candidates are
// reported and skipped.
func runReviewTransition(cmd *cobra.Command, ids []string, status types.ReviewStatus) error {
	for _, id := range ids {
		if _, err := types.ParseCandidateID(id); err != nil {
			return fmt.Errorf("invalid candidate id %q: %w", id, err)
		}
	}

	var conditions *[]types.RuleCondition
	if raw, _ := cmd.Flags().GetString("conditions"); raw != "" {
		var parsed []types.RuleCondition
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return fmt.Errorf("invalid --conditions: %w", err)
		}
		conditions = &parsed
	}

	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if reviewer, _ := cmd.Flags().GetString("reviewer"); reviewer != "" {
		ctx = registry.WithReviewer(ctx, reviewer)
	}

	updated := []types.CandidateRule{}
	skipped := 0
	for _, id := range ids {
		c, err := reg.UpdateStatus(ctx, id, status, conditions)
		if registry.IsSkippable(err) {
			skipped++
			logger.Warn("candidate skipped", zap.String("candidate_id", id), zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", id, err)
			continue
		}
		if err != nil {
			return err
		}
		updated = append(updated, c)
	}

	if err := printJSON(cmd.OutOrStdout(), updated); err != nil {
		return err
	}
	if skipped == len(ids) {
		return fmt.Errorf("no candidates updated")
	}
	return nil
}

func runReviewAutoApprove(cmd *cobra.Command, args []string) error {
	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if reviewer, _ := cmd.Flags().GetString("reviewer"); reviewer != "" {
		ctx = registry.WithReviewer(ctx, reviewer)
	}

	n, err := reg.AutoApprove(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %d candidate(s)\n", n)
	return nil
}

func runReviewHistory(cmd *cobra.Command, args []string) error {
	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	store, ok := reg.Store().(*registry.SQLStore)
	if !ok {
		return fmt.Errorf("transition history requires the sql registry backend")
	}
	transitions, err := store.Transitions(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), transitions)
}
