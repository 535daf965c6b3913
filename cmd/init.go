package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helmcode/labellens/pkg/config"
	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/profile"
)

func NewInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and profile",
		Long: `Create the config file and the profile file with their defaults. Existing
files are left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.ErrOrStderr()

			// Env overrides are for this run only and stay out of the file.
			if force || !exists(configPath) {
				if err := config.DefaultConfig().Save(configPath); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				printSuccess(w, fmt.Sprintf("Config written to %s", configPath))
			} else {
				printSuccess(w, fmt.Sprintf("Config already exists at %s", configPath))
			}

			if force || !exists(cfg.ProfilePath) {
				if err := profile.SaveFile(cfg.ProfilePath, model.DefaultProfile()); err != nil {
					return fmt.Errorf("failed to write profile: %w", err)
				}
				printSuccess(w, fmt.Sprintf("Profile written to %s", cfg.ProfilePath))
			} else {
				printSuccess(w, fmt.Sprintf("Profile already exists at %s", cfg.ProfilePath))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
