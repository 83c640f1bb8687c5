package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ready ReadyFunc) (*httptest.Server, *Service) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc := newTestService(riceStore(), reg)
	srv := httptest.NewServer(NewHTTPMux(svc, ready, reg))
	t.Cleanup(srv.Close)
	return srv, svc
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHTTP_Readings(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body struct {
		Snapshot  map[string]*float64 `json:"snapshot"`
		Rows      []Row               `json:"rows"`
		UpdatedAt string              `json:"updated_at"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/readings", &body))
	require.Len(t, body.Snapshot, 9)
	require.NotNil(t, body.Snapshot["npkNitrogen"])
	assert.Equal(t, 70.0, *body.Snapshot["npkNitrogen"])
	assert.Nil(t, body.Snapshot["nitrogen"])
	require.Len(t, body.Rows, 9)
	assert.Equal(t, Placeholder, body.Rows[3].Display)
	assert.Equal(t, "2024-06-01T08:00:00Z", body.UpdatedAt)
}

func TestHTTP_RecommendationLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var pending map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/recommendation", &pending))
	assert.Equal(t, map[string]any{"status": "pending"}, pending)

	resp, err := http.Post(srv.URL+"/api/recommendation", "application/json", nil)
	require.NoError(t, err)
	var posted recommendationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posted))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", posted.Status)
	require.NotNil(t, posted.Recommendation)
	assert.Equal(t, "Rice", string(posted.Recommendation.Crop))

	var got recommendationResponse
	getJSON(t, srv.URL+"/api/recommendation", &got)
	require.NotNil(t, got.Recommendation)
	assert.Equal(t, posted.Recommendation.ID, got.Recommendation.ID)
}

func TestHTTP_Page(t *testing.T) {
	srv, svc := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	page := string(b)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, page, "Moisture 1")
	assert.Contains(t, page, `value="Loading..."`)
	assert.Contains(t, page, "Recommend Now")
	assert.NotContains(t, page, "Recommended Crop:")

	// the form post triggers and redirects back to the page
	resp, err = http.Post(srv.URL+"/", "application/x-www-form-urlencoded", strings.NewReader(""))
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "Recommended Crop:")
	assert.Contains(t, string(b), "Rice 🌾")

	_, ok := svc.Last()
	assert.True(t, ok)

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_Rules(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	var rules []struct {
		Crop       string `json:"crop"`
		Conditions []struct {
			Field     string  `json:"field"`
			Op        string  `json:"op"`
			Threshold float64 `json:"threshold"`
		} `json:"conditions"`
	}
	getJSON(t, srv.URL+"/api/rules", &rules)
	require.Len(t, rules, 5)
	assert.Equal(t, "Rice", rules[0].Crop)
	assert.Equal(t, "npkNitrogen", rules[0].Conditions[0].Field)
	assert.Equal(t, ">", rules[0].Conditions[0].Op)
	assert.Equal(t, "Sugarcane", rules[4].Crop)
}

func TestHTTP_HealthAndReady(t *testing.T) {
	var connected atomic.Bool
	srv, _ := newTestServer(t, connected.Load)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ready struct {
		Ready bool `json:"ready"`
	}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/readyz", &ready))
	assert.False(t, ready.Ready)

	connected.Store(true)
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/readyz", &ready))
	assert.True(t, ready.Ready)
}

func TestHTTP_Metrics(t *testing.T) {
	srv, svc := newTestServer(t, nil)
	svc.Trigger()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(b), `crop_recommendations_total{crop="Rice"} 1`)
}
