package cli

import (
	"fmt"

	"github.com/albertocavalcante/overcode/pkg/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create overcode.toml with default ignores",
	Long: `Writes a starter overcode.toml to the root directory:

  [[ignores]]
  path = ".git"

An existing project configuration is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	created, path, err := config.Init(root)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if created {
		printf(cmd.OutOrStdout(), "Created %s\n", path)
	} else {
		printf(cmd.OutOrStdout(), "Config already exists: %s\n", path)
	}
	return nil
}
