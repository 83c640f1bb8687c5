package sensor_simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
)

func TestDataGenerator_Deterministic(t *testing.T) {
	a, b := NewDataGenerator(42), NewDataGenerator(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.NextData(), b.NextData())
		assert.Equal(t, a.NextNPK(), b.NextNPK())
	}
}

func TestDataGenerator_StaysInBounds(t *testing.T) {
	g := NewDataGenerator(7)
	for i := 0; i < 2000; i++ {
		d := g.NextData()
		assert.GreaterOrEqual(t, d["moisture1"].(float64), 0.0)
		assert.LessOrEqual(t, d["moisture1"].(float64), 100.0)
		assert.GreaterOrEqual(t, d["humidity"].(float64), 20.0)
		n := g.NextNPK()
		assert.GreaterOrEqual(t, n["Nitrogen"].(float64), 0.0)
		assert.LessOrEqual(t, n["Potassium"].(float64), 205.0)
	}
}

func TestDataGenerator_PayloadsMatchFeedSchema(t *testing.T) {
	g := NewDataGenerator(1)

	u, err := feed.Decode(feed.PathData, g.NextData(), time.Now())
	require.NoError(t, err)
	assert.Len(t, u.Values, 6)
	assert.Empty(t, u.Malformed)

	u, err = feed.Decode(feed.PathNPK, g.NextNPK(), time.Now())
	require.NoError(t, err)
	assert.Len(t, u.Values, 3)

	_, err = g.Next("Other")
	assert.ErrorIs(t, err, feed.ErrUnknownPath)
}

func TestSeedMoisture(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "41.500000", r.URL.Query().Get("lat"))
		_, _ = w.Write([]byte(`{"properties":{"layers":[{"name":"wv0010","depths":[{"values":{"Q0.5":273}}]}]}}`))
	}))
	defer srv.Close()

	g := NewDataGenerator(1)
	g.SoilGridsURL = srv.URL + "/query?lat=%f&lon=%f"
	require.NoError(t, g.SeedMoisture(context.Background(), 41.5, 12.3))
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 27.3, g.moisture.value, 1e-9)
}

func TestSeedMoisture_PermanentFailureKeepsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewDataGenerator(1)
	g.SoilGridsURL = srv.URL + "/query?lat=%f&lon=%f"
	assert.Error(t, g.SeedMoisture(context.Background(), 1, 2))
	assert.Equal(t, 45.0, g.moisture.value)
}

func TestNormalizeWV(t *testing.T) {
	assert.Equal(t, 0.42, normalizeWV(420))
	assert.Equal(t, 0.3, normalizeWV(0.3))
	assert.Equal(t, 0.0, normalizeWV(-1))
	assert.Equal(t, 1.0, normalizeWV(1.2))
}
