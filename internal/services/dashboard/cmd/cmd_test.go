package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "moisture1", flagName(entities.Moisture))
	assert.Equal(t, "npk-phosphorous", flagName(entities.NPKPhosphorous))
}

func TestRecommendCommand_Text(t *testing.T) {
	out, err := execute(t, "recommend",
		"--moisture1", "60", "--temperature", "35",
		"--npk-nitrogen", "70", "--npk-phosphorous", "40", "--npk-potassium", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended Crop: Rice 🌾")
	assert.Contains(t, out, "Humidity                  Loading...")
	assert.Contains(t, out, "1. Rice")
	assert.Contains(t, out, "MATCH")
	assert.Contains(t, out, "match (shadowed)", "Maize also holds but comes later")
}

func TestRecommendCommand_JSON(t *testing.T) {
	out, err := execute(t, "recommend", "--format", "json", "--moisture1", "0", "--npk-nitrogen", "10",
		"--npk-phosphorous", "20", "--npk-potassium", "15")
	require.NoError(t, err)

	var got struct {
		Crop     string              `json:"crop"`
		Rule     int                 `json:"rule"`
		Snapshot map[string]*float64 `json:"snapshot"`
		Trace    []json.RawMessage   `json:"trace"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Cotton", got.Crop)
	assert.Equal(t, 3, got.Rule)
	require.NotNil(t, got.Snapshot["moisture1"])
	assert.Equal(t, 0.0, *got.Snapshot["moisture1"])
	assert.Nil(t, got.Snapshot["humidity"])
	assert.Len(t, got.Trace, 5)
}

func TestRecommendCommand_NoFlags(t *testing.T) {
	out, err := execute(t, "recommend")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended Crop: No recommendation")
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Rice: npkNitrogen > 50 && npkPhosphorous > 30 && npkPotassium > 20 && moisture1 > 50\n")
	assert.Contains(t, out, "4. Maize: temperature > 30 && moisture1 > 40\n")
	assert.Contains(t, out, "otherwise: NoRecommendation")

	out, err = execute(t, "rules", "--format", "json")
	require.NoError(t, err)
	var rules []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Len(t, rules, 5)
}

func TestRootCommand_BadFormat(t *testing.T) {
	_, err := execute(t, "rules", "--format", "yaml")
	assert.Error(t, err)
}
