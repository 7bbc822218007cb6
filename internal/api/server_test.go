package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/metrics"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

const adminKey = "secret"

func testSim(t *testing.T) *engine.Simulation {
	t.Helper()
	c := descriptor.NewCatalog(nil)
	require.NoError(t, c.Goods.Add(economy.Goods{ID: "Coal"}))
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:         "Mine",
		Size:         world.Size{W: 2, H: 2},
		Productivity: 16,
		Chance:       10,
		Climates:     world.AllClimates,
		Products:     []descriptor.Product{{Goods: "Coal", Capacity: 200, Factor: economy.FactorOne}},
	}))
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:                "Plant",
		Size:                world.Size{W: 2, H: 2},
		Productivity:        8,
		Chance:              5,
		Climates:            world.AllClimates,
		ElectricityProducer: true,
		Supplies:            []descriptor.Supply{{Goods: "Coal", Capacity: 100, Consumption: economy.FactorOne}},
	}))
	sim := engine.NewSimulation(world.NewMap(48, 48), c, nil, engine.Options{
		Seed:      5,
		Economy:   factory.DefaultSettings(),
		City:      city.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Builder:   builder.DefaultConfig(),
	})
	sim.Update(func(s *engine.Simulation) {
		mine, err := s.Factories.Build(s.Catalog.Get("Mine"), world.Coord{X: 10, Y: 10}, 0, 0)
		require.NoError(t, err)
		plant, err := s.Factories.Build(s.Catalog.Get("Plant"), world.Coord{X: 14, Y: 10}, 0, 0)
		require.NoError(t, err)
		require.NoError(t, s.Factories.Link(plant, mine))
		s.Network.AddStop(mine.Center())
		s.Network.AddStop(plant.Center())
	})
	sim.Tick(1)
	return sim
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := &Server{Sim: testSim(t), Eng: engine.NewEngine(), AdminKey: adminKey}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatus(t *testing.T) {
	_, ts := testServer(t)

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &status))

	assert.Equal(t, 1.0, status["tick"])
	assert.Equal(t, "jit2", status["accounting"])
	assert.Equal(t, 2.0, status["stops"])
	assert.Equal(t, false, status["running"])
}

func TestFactoriesFilter(t *testing.T) {
	_, ts := testServer(t)

	var all, mines []factorySummary
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/factories", &all))
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/factories?descriptor=Mine", &mines))

	assert.Len(t, all, 2)
	require.Len(t, mines, 1)
	assert.Equal(t, 10, mines[0].X)
	assert.Equal(t, 1, mines[0].Consumers)
}

func TestFactoryDetail(t *testing.T) {
	_, ts := testServer(t)

	var mine map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/factory/10/10", &mine))
	assert.Equal(t, "Mine", mine["name"])
	outputs := mine["outputs"].([]any)
	require.Len(t, outputs, 1)
	coal := outputs[0].(map[string]any)
	assert.Equal(t, "Coal", coal["goods"])
	assert.Equal(t, 16.0, coal["quantity"])

	var plant map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/factory/14/10", &plant))
	input := plant["inputs"].([]any)[0].(map[string]any)
	assert.Contains(t, input, "demand", "modern inputs report their orders")

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/factory/30/30", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/factory/a/b", nil))
}

func TestDescriptors(t *testing.T) {
	_, ts := testServer(t)

	var list []descriptorSummary
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/descriptors", &list))
	assert.Len(t, list, 2)

	var plant map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/descriptors/Plant", &plant))
	assert.Equal(t, true, plant["electricity_producer"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/descriptors/Bakery", nil))
}

func TestTileReportsOccupant(t *testing.T) {
	_, ts := testServer(t)

	var tile map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/tile/11/11", &tile))
	assert.Equal(t, "Mine", tile["factory"])
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/tile/99/0", nil))
}

func TestAdminRequiresToken(t *testing.T) {
	_, ts := testServer(t)

	assert.Equal(t, http.StatusUnauthorized, post(t, ts.URL+"/api/v1/speed", "", `{"speed":2}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, post(t, ts.URL+"/api/v1/speed", "wrong", `{"speed":2}`).StatusCode)

	s := &Server{Sim: testSim(t)}
	disabled := httptest.NewServer(s.Handler())
	defer disabled.Close()
	assert.Equal(t, http.StatusForbidden, post(t, disabled.URL+"/api/v1/speed", adminKey, `{"speed":2}`).StatusCode)
}

func TestSpeed(t *testing.T) {
	s, ts := testServer(t)

	resp := post(t, ts.URL+"/api/v1/speed", adminKey, `{"speed":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4.0, s.Eng.Speed)

	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/v1/speed", adminKey, `{"speed":-1}`).StatusCode)
}

func TestBuildChain(t *testing.T) {
	s, ts := testServer(t)

	resp := post(t, ts.URL+"/api/v1/build", adminKey, `{"descriptor":"Mine","x":30,"y":30}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out["built"])
	assert.Equal(t, 3, s.Sim.Factories.Len())

	assert.Equal(t, http.StatusNotFound, post(t, ts.URL+"/api/v1/build", adminKey, `{"descriptor":"Bakery"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, ts.URL+"/api/v1/populate", adminKey, `{"chains":0}`).StatusCode)
}

func TestSnapshotWritesFile(t *testing.T) {
	s, ts := testServer(t)
	s.SnapshotDir = t.TempDir()

	resp := post(t, ts.URL+"/api/v1/snapshot", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := os.Stat(filepath.Join(s.SnapshotDir, "1.snap.zst"))
	assert.NoError(t, err)
}

func TestSaveWithoutDatabase(t *testing.T) {
	_, ts := testServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts.URL+"/api/v1/save", adminKey, "").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	sim := testSim(t)
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector()
	require.NoError(t, c.Register(reg))
	c.Update(sim.MetricsSnapshot())

	ts := httptest.NewServer((&Server{Sim: sim, Gatherer: reg}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `factorysim_factories{descriptor="Mine"} 1`)
}

func TestRateLimit(t *testing.T) {
	s := &Server{Sim: testSim(t), Limiter: NewRateLimiter(0.001, 1)}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", nil))

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
