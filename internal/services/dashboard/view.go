package dashboard

import (
	"fmt"
	"strings"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
)

// Placeholder is shown for a field that has not been received yet.
const Placeholder = "Loading..."

// Row is one displayed field.
type Row struct {
	Key     string           `json:"key"`
	Label   string           `json:"label"`
	Value   entities.Reading `json:"value"`
	Display string           `json:"display"`
}

// Rows lists the nine fields in display order.
func Rows(s model.Snapshot) []Row {
	fields := entities.AllFields()
	out := make([]Row, 0, len(fields))
	for _, f := range fields {
		r := s.Get(f)
		display := Placeholder
		if r.Known {
			display = r.String()
		}
		out = append(out, Row{Key: f.Key(), Label: f.Label(), Value: r, Display: display})
	}
	return out
}

// RenderText renders the dashboard as plain text. rec is nil while no
// recommendation has been requested.
func RenderText(s model.Snapshot, rec *model.Recommendation) string {
	var b strings.Builder
	b.WriteString("Crop Recommendation\n\n")
	for _, row := range Rows(s) {
		fmt.Fprintf(&b, "%-26s%s\n", row.Label, row.Display)
	}
	if rec != nil {
		fmt.Fprintf(&b, "\nRecommended Crop: %s\n", rec.Label)
	}
	return b.String()
}
