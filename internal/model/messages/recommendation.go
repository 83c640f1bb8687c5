package messages

import (
	"time"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
)

// Recommendation is the result of one user-triggered evaluation.
type Recommendation struct {
	ID          string            `json:"id"`
	Crop        entities.Crop     `json:"crop"`
	Label       string            `json:"label"`
	Rule        int               `json:"rule"` // 1-based index of the matching rule, 0 = fallback
	Snapshot    entities.Snapshot `json:"snapshot"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}
