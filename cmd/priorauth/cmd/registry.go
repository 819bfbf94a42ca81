package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Copy the registry to and from the JSON document layout",
}

var registryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the registry as a JSON document",
	Args:  cobra.NoArgs,
	RunE:  runRegistryExport,
}

var registryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Append a JSON registry document to the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryImport,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryExportCmd, registryImportCmd)
	registryExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func runRegistryExport(cmd *cobra.Command, args []string) error {
	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return reg.Export(cmd.Context(), out)
}

func runRegistryImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	reg, _, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	doc, err := reg.Import(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d policies, %d candidates\n", len(doc.Policies), len(doc.Rules))
	return nil
}
