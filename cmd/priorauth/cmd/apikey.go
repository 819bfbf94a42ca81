package cmd

import (
	"fmt"
	"sort"

	"github.com/solatis/priorauth/internal/core/auth"
	"github.com/solatis/priorauth/internal/core/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage reviewer API keys for the decision service",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key for a reviewer",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	apikeyCreateCmd.Flags().String("reviewer", "", "reviewer the key identifies")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret id (default: the only configured secret)")
	_ = apikeyCreateCmd.MarkFlagRequired("reviewer")
}

// newAuthenticator loads HMAC secrets and the key store.
func newAuthenticator() (*auth.Authenticator, map[string][]byte, func(), error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil, nil, fmt.Errorf("no HMAC secrets configured (set %s environment variable)", config.EnvHMACSecret)
	}
	database, queries, err := openDatabase()
	if err != nil {
		return nil, nil, nil, err
	}
	return auth.NewAuthenticator(secrets, queries), secrets, func() { database.Close() }, nil
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	reviewer, _ := cmd.Flags().GetString("reviewer")
	secretID, _ := cmd.Flags().GetString("secret-id")

	authenticator, secrets, closeFn, err := newAuthenticator()
	if err != nil {
		return err
	}
	defer closeFn()

	if secretID == "" {
		if len(secrets) != 1 {
			ids := make([]string, 0, len(secrets))
			for id := range secrets {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return fmt.Errorf("--secret-id required, configured secrets: %v", ids)
		}
		for id := range secrets {
			secretID = id
		}
	}

	issued, err := authenticator.CreateAPIKey(reviewer, secretID)
	if err != nil {
		return err
	}
	logger.Info("api key created", zap.String("api_key_id", issued.APIKeyID), zap.String("reviewer", issued.Reviewer))
	return printJSON(cmd.OutOrStdout(), map[string]string{
		"api_key_id": issued.APIKeyID,
		"reviewer":   issued.Reviewer,
		"api_key":    issued.Key,
	})
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	authenticator, _, closeFn, err := newAuthenticator()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := authenticator.RevokeAPIKey(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}
