// Package feed turns upstream change notifications into FeedUpdate events.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model/messages"
)

const (
	PathData = "Data"
	PathNPK  = "NPK_Sensor_Data"
)

var (
	ErrUnknownPath  = errors.New("feed: unknown path")
	ErrNotConnected = errors.New("feed: not connected")
)

// Paths lists the feed paths the store subscribes to.
func Paths() []string { return []string{PathData, PathNPK} }

// schema maps payload keys to snapshot fields, per path.
var schema = map[string]map[string]entities.Field{
	PathData: {
		"humidity":    entities.Humidity,
		"moisture1":   entities.Moisture,
		"temperature": entities.Temperature,
		"nitrogen":    entities.Nitrogen,
		"phosphorous": entities.Phosphorous,
		"potassium":   entities.Potassium,
	},
	PathNPK: {
		"Nitrogen":    entities.NPKNitrogen,
		"Phosphorous": entities.NPKPhosphorous,
		"Potassium":   entities.NPKPotassium,
	},
}

// aliases are older key spellings, used only when the payload lacks the
// canonical key.
var aliases = map[string]map[string]string{
	PathData: {"moisture": "moisture1"},
}

// ParseValue converts a decoded payload value to a reading. Anything that is not
// a finite number, or a string holding one, is unknown.
func ParseValue(v any) (entities.Reading, bool) {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return entities.Known(float64(t)), true
	case int8:
		return entities.Known(float64(t)), true
	case int16:
		return entities.Known(float64(t)), true
	case int32:
		return entities.Known(float64(t)), true
	case int64:
		return entities.Known(float64(t)), true
	case uint:
		return entities.Known(float64(t)), true
	case uint8:
		return entities.Known(float64(t)), true
	case uint16:
		return entities.Known(float64(t)), true
	case uint32:
		return entities.Known(float64(t)), true
	case uint64:
		return entities.Known(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return entities.Unknown(), false
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(t)
		// a lone comma is a decimal separator ("23,5"); thousands grouping is
		// not used by the sensors, so "1,250" reads as 1.25
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		if s == "" {
			return entities.Unknown(), false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return entities.Unknown(), false
		}
		return finite(f)
	}
	return entities.Unknown(), false
}

func finite(f float64) (entities.Reading, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return entities.Unknown(), false
	}
	return entities.Known(f), true
}

// Decode builds an update from the key/value payload of path. Keys outside the
// schema are ignored; keys whose value cannot be parsed are set unknown and
// reported in Malformed.
func Decode(path string, payload map[string]any, at time.Time) (messages.FeedUpdate, error) {
	m, ok := schema[path]
	if !ok {
		return messages.FeedUpdate{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	u := messages.FeedUpdate{
		Path:       path,
		Values:     make(map[entities.Field]entities.Reading, len(m)),
		ReceivedAt: at,
	}
	for k, raw := range payload {
		f, ok := m[k]
		if !ok {
			canonical, alias := aliases[path][k]
			if !alias {
				continue
			}
			if _, both := payload[canonical]; both {
				continue
			}
			f = m[canonical]
		}
		r, valid := ParseValue(raw)
		if !valid && raw != nil {
			u.Malformed = append(u.Malformed, k)
		}
		u.Values[f] = r
	}
	return u, nil
}
