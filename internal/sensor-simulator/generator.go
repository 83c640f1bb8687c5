package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LeonardoBeccarini/crop_advisor/internal/feed"
)

// soilGridsURL returns the volumetric water content (wv0010) at a location; queried once at startup.
const soilGridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query?lat=%f&lon=%f&property=wv0010"

// walk is a bounded random walk.
type walk struct {
	value, min, max, step float64
}

func (w *walk) next(r *rand.Rand) float64 {
	w.value = math.Max(w.min, math.Min(w.max, w.value+(r.Float64()*2-1)*w.step))
	return math.Round(w.value*10) / 10
}

// DataGenerator evolves the simulated field readings between publications.
type DataGenerator struct {
	mu   sync.Mutex
	rand *rand.Rand

	humidity, moisture, temperature walk
	nitrogen, phosphorous, potassium walk // general node probe
	npkN, npkP, npkK                 walk // dedicated NPK sensor

	SoilGridsURL string
	httpClient   *http.Client
}

// NewDataGenerator starts every walk at a mid-range value. The same seed gives the same sequence.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rand:         rand.New(rand.NewSource(seed)),
		humidity:     walk{value: 65, min: 20, max: 100, step: 3},
		moisture:     walk{value: 45, min: 0, max: 100, step: 4},
		temperature:  walk{value: 26, min: 5, max: 45, step: 1},
		nitrogen:     walk{value: 45, min: 0, max: 140, step: 5},
		phosphorous:  walk{value: 30, min: 0, max: 145, step: 4},
		potassium:    walk{value: 25, min: 0, max: 205, step: 4},
		npkN:         walk{value: 45, min: 0, max: 140, step: 5},
		npkP:         walk{value: 30, min: 0, max: 145, step: 4},
		npkK:         walk{value: 25, min: 0, max: 205, step: 4},
		SoilGridsURL: soilGridsURL,
		httpClient:   &http.Client{Timeout: 8 * time.Second},
	}
}

// NextData returns the next payload of the "Data" path.
func (g *DataGenerator) NextData() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]any{
		"humidity":    g.humidity.next(g.rand),
		"moisture1":   g.moisture.next(g.rand),
		"temperature": g.temperature.next(g.rand),
		"nitrogen":    g.nitrogen.next(g.rand),
		"phosphorous": g.phosphorous.next(g.rand),
		"potassium":   g.potassium.next(g.rand),
	}
}

// NextNPK returns the next payload of the "NPK_Sensor_Data" path.
func (g *DataGenerator) NextNPK() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]any{
		"Nitrogen":    g.npkN.next(g.rand),
		"Phosphorous": g.npkP.next(g.rand),
		"Potassium":   g.npkK.next(g.rand),
	}
}

// Next returns the next payload of path.
func (g *DataGenerator) Next(path string) (map[string]any, error) {
	switch path {
	case feed.PathData:
		return g.NextData(), nil
	case feed.PathNPK:
		return g.NextNPK(), nil
	}
	return nil, fmt.Errorf("%w: %q", feed.ErrUnknownPath, path)
}

// SeedMoisture starts the moisture walk from the SoilGrids topsoil water content at
// lat/lon. On failure the current value is kept and the error returned.
func (g *DataGenerator) SeedMoisture(ctx context.Context, lat, lon float64) error {
	var wv float64
	op := func() error {
		v, err := g.fetchWaterContent(ctx, lat, lon)
		if err != nil {
			return err
		}
		wv = v
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return err
	}
	g.mu.Lock()
	g.moisture.value = math.Round(wv * 1000) / 10 // m3/m3 -> %
	g.mu.Unlock()
	return nil
}

func (g *DataGenerator) fetchWaterContent(ctx context.Context, lat, lon float64) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.SoilGridsURL, lat, lon), nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", "crop-sensor-simulator/1.0")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, fmt.Errorf("soilgrids HTTP %d", resp.StatusCode)
	default:
		return 0, backoff.Permanent(fmt.Errorf("soilgrids HTTP %d", resp.StatusCode))
	}

	var parsed struct {
		Properties struct {
			Layers []struct {
				Depths []struct {
					Values map[string]*float64 `json:"values"`
				} `json:"depths"`
			} `json:"layers"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("soilgrids: %w", err))
	}
	for _, l := range parsed.Properties.Layers {
		for _, d := range l.Depths {
			for _, k := range []string{"Q0.5", "mean"} {
				if v := d.Values[k]; v != nil {
					return normalizeWV(*v), nil
				}
			}
		}
	}
	return 0, backoff.Permanent(fmt.Errorf("soilgrids: no water content in response"))
}

// normalizeWV maps SoilGrids wv values, often integers in thousandths (420 = 0.420), to [0,1].
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x /= 1000
	}
	return math.Max(0, math.Min(1, x))
}
