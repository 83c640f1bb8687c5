package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/crop_advisor/internal/recommender"
)

func newRulesCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the decision table in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printRules(cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}

func printRules(w io.Writer, format string) error {
	rules := recommender.Rules()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rules)
	}
	for i, r := range rules {
		conds := make([]string, len(r.Conditions))
		for j, c := range r.Conditions {
			conds[j] = c.String()
		}
		if _, err := fmt.Fprintf(w, "%d. %s: %s\n", i+1, r.Crop, strings.Join(conds, " && ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "otherwise: NoRecommendation")
	return err
}
