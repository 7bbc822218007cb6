// Package persistence provides SQLite-based world state storage and
// compressed snapshot files.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS factories (
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		descriptor TEXT NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (pos_x, pos_y)
	);

	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		size INTEGER NOT NULL,
		population INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shipments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		goods TEXT NOT NULL,
		amount INTEGER NOT NULL,
		from_x INTEGER NOT NULL,
		from_y INTEGER NOT NULL,
		to_x INTEGER NOT NULL,
		to_y INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_factories_descriptor ON factories(descriptor);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type factoryRow struct {
	PosX       int    `db:"pos_x"`
	PosY       int    `db:"pos_y"`
	Descriptor string `db:"descriptor"`
	Record     string `db:"record_json"`
}

type shipmentRow struct {
	Goods  string `db:"goods"`
	Amount int64  `db:"amount"`
	FromX  int    `db:"from_x"`
	FromY  int    `db:"from_y"`
	ToX    int    `db:"to_x"`
	ToY    int    `db:"to_y"`
}

// SaveState writes a captured state (full replace) in one transaction.
func (db *DB) SaveState(st State) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"factories", "cities", "shipments", "events"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, rec := range st.Factories {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode factory %s: %w", rec.Pos, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO factories (pos_x, pos_y, descriptor, record_json) VALUES (?, ?, ?, ?)",
			rec.Pos.X, rec.Pos.Y, rec.Descriptor, string(body),
		); err != nil {
			return fmt.Errorf("insert factory %s: %w", rec.Pos, err)
		}
	}

	for _, c := range st.Cities {
		if _, err := tx.NamedExec(
			"INSERT INTO cities (id, name, pos_x, pos_y, size, population) VALUES (:id, :name, :pos_x, :pos_y, :size, :population)",
			c,
		); err != nil {
			return fmt.Errorf("insert city %s: %w", c.Name, err)
		}
	}

	for _, sh := range st.Shipments {
		if _, err := tx.Exec(
			"INSERT INTO shipments (goods, amount, from_x, from_y, to_x, to_y) VALUES (?, ?, ?, ?, ?, ?)",
			string(sh.Goods), sh.Amount, sh.From.X, sh.From.Y, sh.To.X, sh.To.Y,
		); err != nil {
			return fmt.Errorf("insert shipment: %w", err)
		}
	}

	for _, e := range st.Events {
		if _, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		); err != nil {
			return err
		}
	}

	meta := map[string]string{
		"version":        strconv.Itoa(st.Meta.Version),
		"world_id":       st.Meta.WorldID,
		"last_tick":      strconv.FormatUint(st.Meta.Tick, 10),
		"seed":           strconv.FormatInt(st.Meta.Seed, 10),
		"width":          strconv.Itoa(st.Meta.Width),
		"height":         strconv.Itoa(st.Meta.Height),
		"accounting":     st.Meta.Accounting,
		"catalog_digest": st.Meta.CatalogDigest,
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// LoadState reads the saved state. Records that fail to decode are skipped
// with a warning.
func (db *DB) LoadState() (State, error) {
	var st State
	meta, err := db.loadMeta()
	if err != nil {
		return st, fmt.Errorf("load meta: %w", err)
	}
	st.Meta = meta

	var rows []factoryRow
	if err := db.conn.Select(&rows,
		"SELECT pos_x, pos_y, descriptor, record_json FROM factories ORDER BY pos_y, pos_x"); err != nil {
		return st, fmt.Errorf("load factories: %w", err)
	}
	for _, r := range rows {
		var rec factory.Record
		if err := json.Unmarshal([]byte(r.Record), &rec); err != nil {
			slog.Warn("skipping unreadable factory", "pos_x", r.PosX, "pos_y", r.PosY, "error", err)
			continue
		}
		st.Factories = append(st.Factories, rec)
	}

	if err := db.conn.Select(&st.Cities,
		"SELECT id, name, pos_x, pos_y, size, population FROM cities ORDER BY id"); err != nil {
		return st, fmt.Errorf("load cities: %w", err)
	}

	var ships []shipmentRow
	if err := db.conn.Select(&ships,
		"SELECT goods, amount, from_x, from_y, to_x, to_y FROM shipments ORDER BY id"); err != nil {
		return st, fmt.Errorf("load shipments: %w", err)
	}
	for _, r := range ships {
		st.Shipments = append(st.Shipments, transport.Shipment{
			Goods:  economy.GoodsID(r.Goods),
			Amount: r.Amount,
			From:   world.Coord{X: r.FromX, Y: r.FromY},
			To:     world.Coord{X: r.ToX, Y: r.ToY},
		})
	}

	if err := db.conn.Select(&st.Events,
		"SELECT tick, description, category FROM events ORDER BY id"); err != nil {
		return st, fmt.Errorf("load events: %w", err)
	}
	return st, nil
}

func (db *DB) loadMeta() (Meta, error) {
	var m Meta
	var pairs []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&pairs, "SELECT key, value FROM world_meta"); err != nil {
		return m, err
	}
	var err error
	for _, p := range pairs {
		switch p.Key {
		case "version":
			m.Version, err = strconv.Atoi(p.Value)
		case "world_id":
			m.WorldID = p.Value
		case "last_tick":
			m.Tick, err = strconv.ParseUint(p.Value, 10, 64)
		case "seed":
			m.Seed, err = strconv.ParseInt(p.Value, 10, 64)
		case "width":
			m.Width, err = strconv.Atoi(p.Value)
		case "height":
			m.Height, err = strconv.Atoi(p.Value)
		case "accounting":
			m.Accounting = p.Value
		case "catalog_digest":
			m.CatalogDigest = p.Value
		}
		if err != nil {
			return m, fmt.Errorf("meta %s: %w", p.Key, err)
		}
	}
	return m, nil
}

// HasWorldState reports whether a save exists.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	st := Capture(sim)
	slog.Info("saving world state", "factories", len(st.Factories), "cities", len(st.Cities), "tick", st.Meta.Tick)
	if err := db.SaveState(st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	slog.Info("world state saved")
	return nil
}

// LoadWorldState restores the saved state into sim. It returns false when
// nothing has been saved yet.
func (db *DB) LoadWorldState(sim *engine.Simulation) (bool, error) {
	if !db.HasWorldState() {
		return false, nil
	}
	st, err := db.LoadState()
	if err != nil {
		return false, err
	}
	if err := Apply(sim, st); err != nil {
		return false, fmt.Errorf("apply state: %w", err)
	}
	return true, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
