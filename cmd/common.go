package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmcode/labellens/pkg/config"
	"github.com/helmcode/labellens/pkg/logging"
	"github.com/helmcode/labellens/pkg/model"
	"github.com/helmcode/labellens/pkg/profile"
)

var (
	configPath string
	verbose    bool

	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

// AddGlobalFlags registers the flags every subcommand understands.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logs on stderr)")
}

// Setup loads the config and builds the logger before any subcommand runs.
func Setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logging.New(loaded.Logging, verbose)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	logger.Debug("Configuration loaded",
		zap.String("config", configPath),
		zap.String("provider", cfg.Service.Provider),
		zap.String("endpoint", cfg.Service.Endpoint))
	return nil
}

// Teardown flushes buffered logs.
func Teardown(cmd *cobra.Command, args []string) error {
	_ = logger.Sync()
	return nil
}

// profileOptions are the flags that pick and tweak the profile for one run.
// Overrides apply in memory only; the profile file is never rewritten.
type profileOptions struct {
	path          string
	goal          string
	diet          string
	allergens     []string
	sensitivities []string
	flags         []string
}

func (o *profileOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.path, "profile", "", "Path to profile file (defaults to profile_path from config)")
	cmd.Flags().StringVar(&o.goal, "goal", "", "Override goal (gain, loss)")
	cmd.Flags().StringVar(&o.diet, "diet", "", "Override diet (Halal, Vegetarian, Vegan)")
	cmd.Flags().StringSliceVar(&o.allergens, "allergen", nil,
		fmt.Sprintf("Turn on an allergen (%s)", strings.Join(profile.AllergenNames(), ", ")))
	cmd.Flags().StringSliceVar(&o.sensitivities, "sensitivity", nil,
		fmt.Sprintf("Turn on a sensitivity (%s)", strings.Join(profile.SensitivityNames(), ", ")))
	cmd.Flags().StringArrayVar(&o.flags, "flag", nil, "Add a free-text dietary flag")
}

func (o *profileOptions) resolvedPath() string {
	if o.path != "" {
		return o.path
	}
	return cfg.ProfilePath
}

// open loads the profile file and applies the override flags.
func (o *profileOptions) open() (*profile.FileStore, error) {
	store, err := profile.NewFileStore(o.resolvedPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := o.apply(store.MemoryStore); err != nil {
		return nil, err
	}
	return store, nil
}

func (o *profileOptions) apply(store *profile.MemoryStore) error {
	if o.goal != "" {
		if err := store.SetGoal(o.goal); err != nil {
			return err
		}
	}
	if o.diet != "" {
		if err := store.SetDiet(o.diet); err != nil {
			return err
		}
	}
	for _, a := range o.allergens {
		if err := store.SetAllergen(a, true); err != nil {
			return err
		}
	}
	for _, s := range o.sensitivities {
		if err := store.SetSensitivity(s, true); err != nil {
			return err
		}
	}
	for _, f := range o.flags {
		if err := store.AddFlag(f); err != nil {
			return err
		}
	}
	return nil
}

// parseLenses accepts a lens name or "all".
func parseLenses(s string) ([]model.Lens, error) {
	if strings.EqualFold(s, "all") {
		return model.AllLenses(), nil
	}
	l, err := model.ParseLens(s)
	if err != nil {
		return nil, err
	}
	return []model.Lens{l}, nil
}

func validateOutput(format string) error {
	switch format {
	case "human", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unsupported output format %q (supported: human, json, yaml)", format)
}

func printSuccess(w io.Writer, msg string) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "✓ %s\n", msg)
}

func printError(w io.Writer, msg string) {
	red := color.New(color.FgRed)
	red.Fprintf(w, "✗ %s\n", msg)
}

// stderr is where progress lines go so stdout stays parseable.
var stderr io.Writer = os.Stderr
