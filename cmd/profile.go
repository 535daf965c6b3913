package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect the dietary profile sent with personal requests",
	}
	cmd.AddCommand(newProfileShowCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	var (
		opts   profileOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile",
		Long: `Print the profile exactly as it would be sent with the next request: the
profile file with any override flags applied.

Examples:
  labellens profile show
  labellens profile show --allergen peanut --diet vegan -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			p := store.CurrentProfile()

			var out []byte
			switch output {
			case "yaml":
				out, err = yaml.Marshal(p)
			case "json":
				out, err = json.MarshalIndent(p, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unsupported output format %q (supported: yaml, json)", output)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	opts.register(cmd)
	return cmd
}
