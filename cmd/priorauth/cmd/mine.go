package cmd

import (
	"fmt"
	"os"

	"github.com/solatis/priorauth/internal/mining"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Extract candidate rules from policy chunks into the registry",
	Long: `Mine reads policy chunks (--chunks, a JSON list of {id, text, metadata}) or raw
policy text (--policy-text, split into numbered criteria) and stores one DRAFT
candidate per chunk under the policy id.`,
	RunE: runMine,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().String("chunks", "", "JSON file of policy chunks")
	mineCmd.Flags().String("policy-text", "", "plain-text policy document")
	mineCmd.Flags().String("policy-id", "", "policy id (default: policy number found in --policy-text)")
	mineCmd.MarkFlagsOneRequired("chunks", "policy-text")
	mineCmd.MarkFlagsMutuallyExclusive("chunks", "policy-text")
}

func runMine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	chunksPath, _ := cmd.Flags().GetString("chunks")
	textPath, _ := cmd.Flags().GetString("policy-text")
	policyID, _ := cmd.Flags().GetString("policy-id")

	var chunks []mining.Chunk
	if chunksPath != "" {
		f, err := os.Open(chunksPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if chunks, err = mining.LoadChunks(f); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(textPath)
		if err != nil {
			return err
		}
		text := string(data)
		if policyID == "" {
			policyID = mining.ExtractPolicyMetadata(text).PolicyNumber
		}
		chunks = mining.SplitPolicyText(mining.PolicySection(text))
	}
	if policyID == "" {
		return fmt.Errorf("--policy-id required (no policy number found in text)")
	}

	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	miner := mining.NewMiner(extractor, mining.WithLogger(logger), mining.WithMetrics(collector))
	candidates := miner.Mine(ctx, chunks)
	if err := reg.AddCandidates(ctx, candidates, policyID); err != nil {
		return err
	}

	logger.Info("policy mined", zap.String("policy_id", policyID), zap.Int("chunks", len(chunks)))
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"policy_id":  policyID,
		"candidates": len(candidates),
	})
}
