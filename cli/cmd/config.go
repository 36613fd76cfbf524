package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/vibration-stack/cli/pkg/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the vibectl config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := printer(cmd)
		if p.Format == output.FormatJSON {
			return p.JSON(cfg)
		}
		return p.YAML(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(cfg.Path()); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Path())
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		printer(cmd).Success("Wrote %s", cfg.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
