package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/crop_advisor/internal/recommender"
	"github.com/LeonardoBeccarini/crop_advisor/internal/services/dashboard"
)

// flagName turns a snapshot key into a flag name: npkNitrogen -> npk-nitrogen.
func flagName(f entities.Field) string {
	var b strings.Builder
	for _, r := range f.Key() {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newRecommendCommand(rootOpts *rootOptions) *cobra.Command {
	values := make(map[entities.Field]*float64)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Evaluate the decision table on readings given as flags",
		Long: `Evaluate the decision table on readings given as flags.

A field whose flag is not set is unknown and fails every condition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap model.Snapshot
			for f, v := range values {
				if cmd.Flags().Changed(flagName(f)) {
					r := entities.Known(*v)
					if !r.Known {
						return fmt.Errorf("--%s must be a finite number", flagName(f))
					}
					snap = snap.With(f, r)
				}
			}
			return runRecommend(cmd.OutOrStdout(), rootOpts.Format, snap)
		},
	}
	for _, f := range entities.AllFields() {
		values[f] = cmd.Flags().Float64(flagName(f), 0, f.Label())
	}
	return cmd
}

func runRecommend(w io.Writer, format string, snap model.Snapshot) error {
	res := recommender.Evaluate(snap)
	trace := recommender.Explain(snap)

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Crop     entities.Crop           `json:"crop"`
			Label    string                  `json:"label"`
			Rule     int                     `json:"rule"`
			Snapshot model.Snapshot          `json:"snapshot"`
			Trace    []recommender.RuleTrace `json:"trace"`
		}{res.Crop, res.Crop.Label(), res.Rule, snap, trace})
	}

	rec := model.Recommendation{Crop: res.Crop, Label: res.Crop.Label(), Rule: res.Rule, Snapshot: snap}
	fmt.Fprint(w, dashboard.RenderText(snap, &rec))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, rt := range trace {
		status := "no match"
		switch {
		case rt.Matched && rt.Evaluated:
			status = "MATCH"
		case rt.Matched:
			status = "match (shadowed)"
		}
		fmt.Fprintf(tw, "%d. %s\t%s\n", i+1, rt.Rule.Crop, status)
		for _, ct := range rt.Conditions {
			mark := "fail"
			if ct.Holds {
				mark = "ok"
			}
			fmt.Fprintf(tw, "   %s\t%s\t(%s)\n", ct.Condition, mark, ct.Reading)
		}
	}
	return tw.Flush()
}
