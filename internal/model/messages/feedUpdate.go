package messages

import (
	"time"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
)

// FeedUpdate is one partial update pushed by a feed. Fields missing from Values are unchanged.
type FeedUpdate struct {
	Path       string                              `json:"path"`
	Values     map[entities.Field]entities.Reading `json:"-"`
	Malformed  []string                            `json:"malformed,omitempty"` // payload keys whose value could not be parsed
	ReceivedAt time.Time                           `json:"received_at"`
}

// Empty reports whether the update carries no field at all.
func (u FeedUpdate) Empty() bool { return len(u.Values) == 0 }
