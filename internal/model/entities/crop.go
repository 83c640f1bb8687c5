package entities

// Crop is the outcome of a recommendation.
type Crop string

const (
	Rice             Crop = "Rice"
	Wheat            Crop = "Wheat"
	Cotton           Crop = "Cotton"
	Maize            Crop = "Maize"
	Sugarcane        Crop = "Sugarcane"
	NoRecommendation Crop = "NoRecommendation"
)

var cropLabels = map[Crop]string{
	Rice:             "Rice 🌾",
	Wheat:            "Wheat 🌾",
	Cotton:           "Cotton ☁️",
	Maize:            "Maize 🌽",
	Sugarcane:        "Sugarcane 🍬",
	NoRecommendation: "No recommendation",
}

// Crops lists every possible outcome.
func Crops() []Crop {
	return []Crop{Rice, Wheat, Cotton, Maize, Sugarcane, NoRecommendation}
}

func (c Crop) Valid() bool {
	_, ok := cropLabels[c]
	return ok
}

// Label is the text displayed on the dashboard.
func (c Crop) Label() string {
	if l, ok := cropLabels[c]; ok {
		return l
	}
	return string(c)
}
