package recommender

import "github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"

// Result is the crop chosen for a snapshot and the 1-based rule that chose it (0 = fallback).
type Result struct {
	Crop entities.Crop `json:"crop"`
	Rule int           `json:"rule"`
}

// Recommend returns the crop for s. It never fails: a snapshot matching no rule,
// including one with every field unknown, yields NoRecommendation.
func Recommend(s entities.Snapshot) entities.Crop {
	return Evaluate(s).Crop
}

// Evaluate runs the cascade and stops at the first matching rule.
func Evaluate(s entities.Snapshot) Result {
	for i, r := range table {
		if r.matches(s) {
			return Result{Crop: r.Crop, Rule: i + 1}
		}
	}
	return Result{Crop: entities.NoRecommendation}
}

// ConditionTrace is the outcome of one condition.
type ConditionTrace struct {
	Condition Condition        `json:"condition"`
	Reading   entities.Reading `json:"reading"`
	Holds     bool             `json:"holds"`
}

// RuleTrace is the outcome of one rule. Rules after the winner are still traced
// (Evaluated is false for them) so a caller can see every overlap.
type RuleTrace struct {
	Rule       Rule             `json:"rule"`
	Matched    bool             `json:"matched"`
	Evaluated  bool             `json:"evaluated"`
	Conditions []ConditionTrace `json:"conditions"`
}

// Explain traces every rule against s. The winner is the first trace with Matched and Evaluated.
func Explain(s entities.Snapshot) []RuleTrace {
	out := make([]RuleTrace, 0, len(table))
	decided := false
	for _, r := range Rules() {
		rt := RuleTrace{Rule: r, Evaluated: !decided, Matched: true}
		for _, c := range r.Conditions {
			h := c.Holds(s)
			rt.Conditions = append(rt.Conditions, ConditionTrace{Condition: c, Reading: s.Get(c.Field), Holds: h})
			if !h {
				rt.Matched = false
			}
		}
		if rt.Matched && !decided {
			decided = true
		}
		out = append(out, rt)
	}
	return out
}
