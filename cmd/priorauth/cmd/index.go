package cmd

import (
	"github.com/solatis/priorauth/internal/index"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index approved rules in Redis for search",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(indexCmd, searchCmd)
	indexCmd.Flags().String("policy-id", "", "index only this policy's approved rules")
	indexCmd.Flags().Bool("rebuild", false, "clear the index before indexing")
	searchCmd.Flags().IntP("top", "k", 5, "number of matches to return")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	policyID, _ := cmd.Flags().GetString("policy-id")
	rebuild, _ := cmd.Flags().GetBool("rebuild")

	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	idx, closeIndex, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex()

	if rebuild {
		if err := idx.Clear(ctx); err != nil {
			return err
		}
	}
	indexed, err := index.Refresh(ctx, reg, idx, policyID)
	if err != nil {
		return err
	}

	total, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("rules indexed", zap.Int("indexed", indexed), zap.Int64("total", total))
	return printJSON(cmd.OutOrStdout(), map[string]any{"indexed": indexed, "total": total})
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	k, _ := cmd.Flags().GetInt("top")

	idx, closeIndex, err := openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex()

	matches, err := idx.Search(ctx, args[0], k)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), matches)
}
