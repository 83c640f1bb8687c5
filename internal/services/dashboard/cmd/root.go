package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	Format string // "text" | "json"
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "crop-dashboard",
		Short: "Crop recommendation dashboard",
		Long:  "Follows the field sensor feeds and recommends a crop from the latest readings.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newRecommendCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	return cmd
}
