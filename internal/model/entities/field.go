package entities

import "fmt"

// Field identifies one tracked sensor value. The order is the display order of the dashboard.
type Field int

const (
	Humidity Field = iota
	Moisture
	Temperature
	Nitrogen    // general data feed
	Phosphorous // general data feed
	Potassium   // general data feed
	NPKNitrogen
	NPKPhosphorous
	NPKPotassium

	fieldCount
)

var fieldKeys = [fieldCount]string{
	"humidity",
	"moisture1",
	"temperature",
	"nitrogen",
	"phosphorous",
	"potassium",
	"npkNitrogen",
	"npkPhosphorous",
	"npkPotassium",
}

var fieldLabels = [fieldCount]string{
	"Humidity",
	"Moisture 1",
	"Temperature",
	"Nitrogen (Data)",
	"Phosphorous (Data)",
	"Potassium (Data)",
	"Nitrogen (NPK Sensor)",
	"Phosphorous (NPK Sensor)",
	"Potassium (NPK Sensor)",
}

// AllFields returns every field in display order.
func AllFields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

func (f Field) Valid() bool { return f >= 0 && f < fieldCount }

// Key is the snapshot key of the field, e.g. "npkNitrogen".
func (f Field) Key() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldKeys[f]
}

// Label is the human readable name shown next to the value.
func (f Field) Label() string {
	if !f.Valid() {
		return f.Key()
	}
	return fieldLabels[f]
}

func (f Field) String() string { return f.Key() }

// ParseField maps a snapshot key back to its Field.
func ParseField(key string) (Field, bool) {
	for i, k := range fieldKeys {
		if k == key {
			return Field(i), true
		}
	}
	return 0, false
}

func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid field %d", int(f))
	}
	return []byte(f.Key()), nil
}

func (f *Field) UnmarshalText(b []byte) error {
	v, ok := ParseField(string(b))
	if !ok {
		return fmt.Errorf("unknown field %q", string(b))
	}
	*f = v
	return nil
}
