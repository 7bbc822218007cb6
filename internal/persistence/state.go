package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

// FormatVersion is bumped whenever a saved field changes meaning.
const FormatVersion = 1

// ErrMapMismatch is returned when a save was made on a map of another size.
var ErrMapMismatch = errors.New("saved map size differs")

// Meta describes a save.
type Meta struct {
	Version       int    `json:"version"`
	WorldID       string `json:"world_id"`
	Tick          uint64 `json:"tick"`
	Seed          int64  `json:"seed"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Accounting    string `json:"accounting"`
	CatalogDigest string `json:"catalog_digest"`
}

// CityRecord is the saved state of a city.
type CityRecord struct {
	ID         uint64         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	PosX       int            `json:"pos_x" db:"pos_x"`
	PosY       int            `json:"pos_y" db:"pos_y"`
	Size       world.CitySize `json:"size" db:"size"`
	Population uint32         `json:"population" db:"population"`
}

// State is everything needed to resume a world on a regenerated map.
type State struct {
	Meta      Meta
	Factories []factory.Record
	Cities    []CityRecord
	Shipments []transport.Shipment
	Events    []engine.Event
}

// Capture copies the simulation's persistent state.
func Capture(sim *engine.Simulation) State {
	var st State
	sim.View(func(s *engine.Simulation) {
		st.Meta = Meta{
			Version:       FormatVersion,
			WorldID:       s.ID,
			Tick:          s.LastTick,
			Seed:          s.Seed,
			Width:         s.Map.Width,
			Height:        s.Map.Height,
			Accounting:    s.Settings.Accounting.String(),
			CatalogDigest: s.Catalog.Digest(),
		}
		for _, u := range s.Factories.Units() {
			st.Factories = append(st.Factories, u.Record())
		}
		for _, c := range s.Cities.Cities() {
			st.Cities = append(st.Cities, CityRecord{
				ID:         c.ID,
				Name:       c.Name,
				PosX:       c.Position.X,
				PosY:       c.Position.Y,
				Size:       c.Size,
				Population: c.Population,
			})
		}
		st.Shipments = s.Network.Pending()
		st.Events = append([]engine.Event(nil), s.Events...)
	})
	return st
}

// Apply restores a captured state into a freshly wired simulation over the
// same map. The save's accounting mode replaces the configured one.
func Apply(sim *engine.Simulation, st State) error {
	if st.Meta.Version > FormatVersion {
		return fmt.Errorf("save format %d is newer than %d", st.Meta.Version, FormatVersion)
	}
	acc, ok := factory.ParseAccounting(st.Meta.Accounting)
	if !ok {
		return fmt.Errorf("unknown accounting mode %q", st.Meta.Accounting)
	}

	var err error
	sim.Update(func(s *engine.Simulation) {
		if s.Map.Width != st.Meta.Width || s.Map.Height != st.Meta.Height {
			err = fmt.Errorf("%w: saved %dx%d, map %dx%d", ErrMapMismatch,
				st.Meta.Width, st.Meta.Height, s.Map.Width, s.Map.Height)
			return
		}
		if digest := s.Catalog.Digest(); digest != st.Meta.CatalogDigest {
			slog.Warn("descriptor catalog changed since save", "saved", st.Meta.CatalogDigest, "current", digest)
		}
		if s.Settings.Accounting != acc {
			slog.Info("accounting mode taken from save", "mode", acc)
		}
		s.Settings.Accounting = acc
		if st.Meta.WorldID != "" {
			s.ID = st.Meta.WorldID
		}
		s.LastTick = st.Meta.Tick
		s.Events = append([]engine.Event(nil), st.Events...)
		restoreCities(s.Cities, st.Cities)
	})
	if err != nil {
		return err
	}

	units := make([]*factory.Unit, 0, len(st.Factories))
	warnings := 0
	for _, rec := range st.Factories {
		u, w := factory.Restore(rec, sim.Catalog, sim.Settings)
		warnings += len(w)
		units = append(units, u)
	}
	sim.Adopt(units)
	sim.RestoreShipments(st.Shipments)

	slog.Info("world state applied",
		"factories", len(units),
		"cities", len(st.Cities),
		"shipments", len(st.Shipments),
		"warnings", warnings,
		"tick", st.Meta.Tick,
	)
	return nil
}

func restoreCities(reg *city.Registry, saved []CityRecord) {
	for _, rec := range saved {
		if c := reg.Get(rec.Name); c != nil {
			c.Population = rec.Population
			continue
		}
		reg.Add(&city.City{
			ID:         rec.ID,
			Name:       rec.Name,
			Position:   world.Coord{X: rec.PosX, Y: rec.PosY},
			Size:       rec.Size,
			Population: rec.Population,
		})
	}
}
