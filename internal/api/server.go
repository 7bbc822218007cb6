// Package api provides the HTTP API for querying world state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/persistence"
	"github.com/talgya/mini-industry/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// SnapshotDir receives snapshot files written through the admin API.
	SnapshotDir string

	Limiter *RateLimiter

	srv *http.Server
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/factories", s.handleFactories)
	mux.HandleFunc("GET /api/v1/factory/{x}/{y}", s.handleFactoryDetail)
	mux.HandleFunc("GET /api/v1/descriptors", s.handleDescriptors)
	mux.HandleFunc("GET /api/v1/descriptors/{name}", s.handleDescriptorDetail)
	mux.HandleFunc("GET /api/v1/cities", s.handleCities)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/tile/{x}/{y}", s.handleTile)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/save", s.adminOnly(s.handleSave))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/build", s.adminOnly(s.handleBuild))
	mux.HandleFunc("POST /api/v1/populate", s.adminOnly(s.handlePopulate))

	var handler http.Handler = mux
	if s.Limiter != nil {
		handler = RateLimitMiddleware(s.Limiter, handler)
	}

	if s.Gatherer != nil {
		path := s.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root := http.NewServeMux()
		root.Handle(path, promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
		root.Handle("/", handler)
		handler = root
	}
	return corsMiddleware(handler)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "metrics", s.Gatherer != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	if s.Limiter != nil {
		go func() {
			for range time.Tick(time.Hour) {
				s.Limiter.Cleanup(time.Hour)
			}
		}()
	}
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"name": "factorysim"}
	s.Sim.View(func(sim *engine.Simulation) {
		status["world_id"] = sim.ID
		status["tick"] = sim.LastTick
		status["sim_time"] = engine.SimTime(sim.LastTick)
		status["accounting"] = sim.Settings.Accounting.String()
		status["factories"] = sim.Stats.Factories
		status["cities"] = len(sim.Cities.Cities())
		status["stops"] = len(sim.Network.Stops())
		status["power_supply"] = sim.Stats.PowerSupply
		status["power_demand"] = sim.Stats.PowerDemand
		status["shipments"] = sim.Stats.Shipments
	})
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats engine.SimStats
	var transport any
	s.Sim.View(func(sim *engine.Simulation) {
		stats = sim.Stats
		transport = sim.Network.Stats()
	})
	writeJSON(w, map[string]any{"economy": stats, "transport": transport})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Sim.View(func(sim *engine.Simulation) {
		for _, e := range sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

type factorySummary struct {
	Name        string `json:"name"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Status      string `json:"status"`
	Policy      string `json:"policy"`
	ProdBase    int64  `json:"prod_base"`
	Suppliers   int    `json:"suppliers"`
	Consumers   int    `json:"consumers"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

func summarize(u *factory.Unit) factorySummary {
	return factorySummary{
		Name:        u.Name(),
		X:           u.Pos().X,
		Y:           u.Pos().Y,
		Status:      u.Status().String(),
		Policy:      u.Policy().String(),
		ProdBase:    u.ProdBase(),
		Suppliers:   len(u.Suppliers()),
		Consumers:   len(u.Consumers()),
		Placeholder: u.Placeholder(),
	}
}

func (s *Server) handleFactories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, status := q.Get("descriptor"), q.Get("status")

	list := make([]factorySummary, 0)
	s.Sim.View(func(sim *engine.Simulation) {
		for _, u := range sim.Factories.Units() {
			if name != "" && u.Name() != name {
				continue
			}
			if status != "" && u.Status().String() != status {
				continue
			}
			list = append(list, summarize(u))
		}
	})
	writeJSON(w, list)
}

// bufferView reports a buffer in whole units.
type bufferView struct {
	Goods      string `json:"goods"`
	Quantity   int64  `json:"quantity"`
	Capacity   int64  `json:"capacity"`
	Transit    int64  `json:"transit,omitempty"`
	Demand     *int64 `json:"demand,omitempty"`
	MonthIn    int64  `json:"month_in"`
	MonthOut   int64  `json:"month_out"`
	LastIn     int64  `json:"last_month_in"`
	LastOut    int64  `json:"last_month_out"`
	MinShipped int64  `json:"min_shipment"`
}

func viewBuffer(b *economy.Buffer, modernInput bool) bufferView {
	v := bufferView{
		Goods:      string(b.Goods),
		Quantity:   economy.WholeUnits(b.Quantity),
		Capacity:   economy.WholeUnits(b.Max),
		Transit:    economy.WholeUnits(b.Transit),
		MonthIn:    economy.WholeUnits(b.Stat(0, economy.StatIn)),
		MonthOut:   economy.WholeUnits(b.Stat(0, economy.StatOut)),
		LastIn:     economy.WholeUnits(b.Stat(1, economy.StatIn)),
		LastOut:    economy.WholeUnits(b.Stat(1, economy.StatOut)),
		MinShipped: economy.WholeUnits(b.MinShipment),
	}
	if modernInput {
		d := economy.WholeUnits(b.Demand)
		v.Demand = &d
	}
	return v
}

type factoryDetail struct {
	factorySummary
	Rotation      int             `json:"rotation"`
	Expansions    int             `json:"expansions"`
	Inputs        []bufferView    `json:"inputs"`
	Outputs       []bufferView    `json:"outputs"`
	SupplierPos   []world.Coord   `json:"supplier_positions"`
	ConsumerPos   []world.Coord   `json:"consumer_positions"`
	Fields        []factory.Field `json:"fields"`
	Cities        []string        `json:"target_cities"`
	ElectricBoost int64           `json:"electric_boost"`
	PaxBoost      int64           `json:"pax_boost"`
	MailBoost     int64           `json:"mail_boost"`
	PowerOutput   int64           `json:"power_output,omitempty"`
	PowerDemand   int64           `json:"power_demand,omitempty"`
	Working       bool            `json:"working"`
}

func parseCoord(r *http.Request) (world.Coord, bool) {
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(r.PathValue("y"))
	return world.Coord{X: x, Y: y}, errX == nil && errY == nil
}

func (s *Server) handleFactoryDetail(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseCoord(r)
	if !ok {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	var detail *factoryDetail
	s.Sim.View(func(sim *engine.Simulation) {
		u := sim.Factories.At(pos)
		if u == nil {
			return
		}
		modern := u.Accounting() == factory.AccountingModern
		d := &factoryDetail{
			factorySummary: summarize(u),
			Rotation:       u.Rotation(),
			Expansions:     u.Expansions(),
			SupplierPos:    append([]world.Coord{}, u.Suppliers()...),
			ConsumerPos:    append([]world.Coord{}, u.Consumers()...),
			Fields:         append([]factory.Field{}, u.Fields()...),
			Cities:         append([]string{}, u.TargetCities()...),
			ElectricBoost:  u.ElectricBoost(),
			PaxBoost:       u.PaxBoost(),
			MailBoost:      u.MailBoost(),
			PowerOutput:    u.PowerOutput(),
			PowerDemand:    u.PowerDemand(),
			Working:        u.Smoking(),
		}
		for _, b := range u.Inputs() {
			d.Inputs = append(d.Inputs, viewBuffer(b, modern))
		}
		for _, b := range u.Outputs() {
			d.Outputs = append(d.Outputs, viewBuffer(b, false))
		}
		detail = d
	})
	if detail == nil {
		http.Error(w, factory.ErrNoSuchFactory.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

type descriptorSummary struct {
	Name         string     `json:"name"`
	Placement    string     `json:"placement"`
	Size         world.Size `json:"size"`
	Productivity int        `json:"productivity"`
	Chance       int        `json:"chance"`
	Inputs       []string   `json:"inputs"`
	Outputs      []string   `json:"outputs"`
	Power        bool       `json:"electricity_producer,omitempty"`
}

func (s *Server) handleDescriptors(w http.ResponseWriter, r *http.Request) {
	all := s.Sim.Catalog.All()
	list := make([]descriptorSummary, 0, len(all))
	for _, d := range all {
		ds := descriptorSummary{
			Name:         d.Name,
			Placement:    d.Placement.String(),
			Size:         d.Size,
			Productivity: d.Productivity,
			Chance:       d.Chance,
			Inputs:       []string{},
			Outputs:      []string{},
			Power:        d.ElectricityProducer,
		}
		for _, in := range d.Supplies {
			ds.Inputs = append(ds.Inputs, string(in.Goods))
		}
		for _, out := range d.Products {
			ds.Outputs = append(ds.Outputs, string(out.Goods))
		}
		list = append(list, ds)
	}
	writeJSON(w, list)
}

func (s *Server) handleDescriptorDetail(w http.ResponseWriter, r *http.Request) {
	d := s.Sim.Catalog.Get(r.PathValue("name"))
	if d == nil {
		http.Error(w, descriptor.ErrUnknownDescriptor.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	type cityEntry struct {
		ID         uint64      `json:"id"`
		Name       string      `json:"name"`
		Position   world.Coord `json:"position"`
		Size       string      `json:"size"`
		Population uint32      `json:"population"`
		Factories  int         `json:"factories"`
	}
	list := make([]cityEntry, 0)
	s.Sim.View(func(sim *engine.Simulation) {
		for _, c := range sim.Cities.Cities() {
			list = append(list, cityEntry{
				ID:         c.ID,
				Name:       c.Name,
				Position:   c.Position,
				Size:       c.Size.String(),
				Population: c.Population,
				Factories:  len(c.Targets()),
			})
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Population > list[j].Population })
	writeJSON(w, list)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	m := s.Sim.Map
	terrain := make(map[string]int)
	for t, n := range world.TerrainCounts(m) {
		terrain[world.TerrainName(t)] = n
	}
	writeJSON(w, map[string]any{
		"width":   m.Width,
		"height":  m.Height,
		"terrain": terrain,
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	pos, ok := parseCoord(r)
	if !ok {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	var tile world.Tile
	var found bool
	var occupant string
	s.Sim.View(func(sim *engine.Simulation) {
		t := sim.Map.Get(pos)
		if t == nil {
			return
		}
		tile, found = *t, true
		if t.Owner.Kind == world.OwnerFactory || t.Owner.Kind == world.OwnerField {
			if u := sim.Factories.At(t.Owner.Factory); u != nil {
				occupant = u.Name()
			}
		}
	})
	if !found {
		http.Error(w, "tile out of bounds", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"tile":    tile,
		"terrain": world.TerrainName(tile.Terrain),
		"factory": occupant,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.Speed = req.Speed
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "world saved",
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.SnapshotDir == "" {
		http.Error(w, "snapshots not configured", http.StatusServiceUnavailable)
		return
	}
	st := persistence.Capture(s.Sim)
	path := filepath.Join(s.SnapshotDir, fmt.Sprintf("%d.snap.zst", st.Meta.Tick))
	if err := persistence.WriteSnapshot(path, st); err != nil {
		slog.Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick": st.Meta.Tick,
		"path": path,
	})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Descriptor string `json:"descriptor"`
		X          int    `json:"x"`
		Y          int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	built, err := s.Sim.BuildChain(req.Descriptor, world.Coord{X: req.X, Y: req.Y})
	if errors.Is(err, descriptor.ErrUnknownDescriptor) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if built == 0 {
		http.Error(w, "no site found", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]int{"built": built})
}

func (s *Server) handlePopulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chains int `json:"chains"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Chains < 1 || req.Chains > 100 {
		http.Error(w, "chains must be 1-100", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]int{"built": s.Sim.Populate(req.Chains)})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
