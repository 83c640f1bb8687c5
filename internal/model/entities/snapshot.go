package entities

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the merged state of every tracked field. It is a value type:
// copies never share state, so a snapshot handed to a reader cannot change under it.
type Snapshot struct {
	readings [fieldCount]Reading
}

// Get returns the reading of f; an invalid field reads as unknown.
func (s Snapshot) Get(f Field) Reading {
	if !f.Valid() {
		return Unknown()
	}
	return s.readings[f]
}

// With returns a copy of s with f set to r.
func (s Snapshot) With(f Field, r Reading) Snapshot {
	if f.Valid() {
		s.readings[f] = r
	}
	return s
}

// KnownCount returns how many fields hold a value.
func (s Snapshot) KnownCount() int {
	n := 0
	for _, r := range s.readings {
		if r.Known {
			n++
		}
	}
	return n
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	m := make(map[string]Reading, fieldCount)
	for i, r := range s.readings {
		m[Field(i).Key()] = r
	}
	return json.Marshal(m)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var m map[string]Reading
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Snapshot
	for k, r := range m {
		f, ok := ParseField(k)
		if !ok {
			return fmt.Errorf("snapshot: unknown field %q", k)
		}
		out.readings[f] = r
	}
	*s = out
	return nil
}
