// Package recommender maps a sensor snapshot to a crop with a fixed decision table.
//
// Rules are evaluated top to bottom and the first rule whose conditions all hold wins.
// Several rules overlap (a wet, warm, nutrient rich reading satisfies both Rice and Maize),
// so the table order is part of the contract and must not be rearranged.
package recommender

import (
	"fmt"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
)

// Op is a strict comparison against a threshold.
type Op int

const (
	Above Op = iota // value > threshold
	Below           // value < threshold
)

func (o Op) String() string {
	if o == Below {
		return "<"
	}
	return ">"
}

func (o Op) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Condition compares one field of the snapshot against a threshold.
type Condition struct {
	Field     entities.Field `json:"field"`
	Op        Op             `json:"op"`
	Threshold float64        `json:"threshold"`
}

// Holds evaluates the condition. Unknown readings never hold.
func (c Condition) Holds(s entities.Snapshot) bool {
	r := s.Get(c.Field)
	if c.Op == Below {
		return r.Below(c.Threshold)
	}
	return r.Above(c.Threshold)
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Field.Key(), c.Op, c.Threshold)
}

// Rule recommends Crop when every condition holds.
type Rule struct {
	Crop       entities.Crop `json:"crop"`
	Conditions []Condition   `json:"conditions"`
}

func (r Rule) matches(s entities.Snapshot) bool {
	for _, c := range r.Conditions {
		if !c.Holds(s) {
			return false
		}
	}
	return true
}

// nutrient readings come from the NPK sensor feed only; the general feed's N/P/K are display-only.
var table = []Rule{
	{Crop: entities.Rice, Conditions: []Condition{
		{entities.NPKNitrogen, Above, 50},
		{entities.NPKPhosphorous, Above, 30},
		{entities.NPKPotassium, Above, 20},
		{entities.Moisture, Above, 50},
	}},
	{Crop: entities.Wheat, Conditions: []Condition{
		{entities.NPKNitrogen, Above, 40},
		{entities.NPKPhosphorous, Above, 25},
		{entities.NPKPotassium, Above, 30},
		{entities.Moisture, Above, 40},
	}},
	{Crop: entities.Cotton, Conditions: []Condition{
		{entities.NPKNitrogen, Below, 20},
		{entities.NPKPhosphorous, Above, 15},
		{entities.NPKPotassium, Above, 10},
		{entities.Moisture, Below, 30},
	}},
	{Crop: entities.Maize, Conditions: []Condition{
		{entities.Temperature, Above, 30},
		{entities.Moisture, Above, 40},
	}},
	{Crop: entities.Sugarcane, Conditions: []Condition{
		{entities.NPKNitrogen, Above, 60},
		{entities.NPKPhosphorous, Above, 40},
		{entities.NPKPotassium, Above, 35},
	}},
}

// Rules returns a copy of the decision table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(table))
	for i, r := range table {
		out[i] = Rule{Crop: r.Crop, Conditions: append([]Condition(nil), r.Conditions...)}
	}
	return out
}
