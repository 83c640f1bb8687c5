package entities

import (
	"encoding/json"
	"math"
	"strconv"
)

// Reading is a sensor value that may not have been received yet.
// The zero value is unknown.
type Reading struct {
	Value float64
	Known bool
}

func Unknown() Reading { return Reading{} }

// Known returns a known reading; NaN and infinities stay unknown.
func Known(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Known: true}
}

// Above reports r > t. An unknown reading is never above anything.
func (r Reading) Above(t float64) bool { return r.Known && r.Value > t }

// Below reports r < t. An unknown reading is never below anything.
func (r Reading) Below(t float64) bool { return r.Known && r.Value < t }

func (r Reading) String() string {
	if !r.Known {
		return "unknown"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Known {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Unknown()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Known(v)
	return nil
}
