package cmd

import (
	"fmt"
	"os"

	"github.com/solatis/priorauth/internal/core/api"
	"github.com/solatis/priorauth/internal/core/auth"
	"github.com/solatis/priorauth/internal/rules"
	"github.com/solatis/priorauth/internal/types"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// envAPIKey supplies the reviewer key for --server calls.
const envAPIKey = "PA_API_KEY"

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Decide a prior-authorization request",
	Long: `Evaluate a patient (--patient, JSON) against explicit rules (--rules, JSON list)
or the approved rules of a policy (--policy-id). Prints the decision and a short
explanation. With --server the request is sent to a running decision service.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("patient", "", "patient context JSON file (- for stdin)")
	evaluateCmd.Flags().String("rules", "", "rules JSON file")
	evaluateCmd.Flags().String("policy-id", "", "evaluate the approved rules of this policy")
	evaluateCmd.Flags().String("server", "", "decision service address (host:port)")
	_ = evaluateCmd.MarkFlagRequired("patient")
	evaluateCmd.MarkFlagsOneRequired("rules", "policy-id")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	patientPath, _ := cmd.Flags().GetString("patient")
	rulesPath, _ := cmd.Flags().GetString("rules")
	policyID, _ := cmd.Flags().GetString("policy-id")
	server, _ := cmd.Flags().GetString("server")

	var ruleSet []types.Rule
	if rulesPath != "" {
		loaded, err := loadRules(rulesPath)
		if err != nil {
			return err
		}
		ruleSet = loaded
	}

	if server != "" {
		var raw map[string]any
		if err := readJSONFile(patientPath, &raw); err != nil {
			return err
		}
		return evaluateRemote(cmd, server, api.EvaluateRequest{Patient: raw, Rules: ruleSet, PolicyID: policyID})
	}

	patient, err := loadPatient(patientPath)
	if err != nil {
		return err
	}

	if ruleSet == nil {
		reg, _, closeFn, err := openRegistry()
		if err != nil {
			return err
		}
		defer closeFn()
		if ruleSet, err = reg.ApprovedRules(ctx, policyID); err != nil {
			return err
		}
	}

	engine := rules.NewEngine(rules.WithLogger(logger), rules.WithMetrics(collector))
	decision := engine.Evaluate(ruleSet, patient)
	return printJSON(cmd.OutOrStdout(), api.EvaluateResponse{
		Decision:    decision,
		Explanation: rules.Explain(decision),
	})
}

func evaluateRemote(cmd *cobra.Command, server string, req api.EvaluateRequest) error {
	conn, err := grpc.NewClient(server, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", server, err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if key := os.Getenv(envAPIKey); key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, key)
	}

	resp, err := api.NewClient(conn).Evaluate(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}
