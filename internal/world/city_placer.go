// City placement: scores land tiles, seeds city centres with minimum
// spacing and lays a small road cross through each one.
package world

import (
	"math"
	"math/rand"
	"sort"
)

// CitySeed holds the parameters for an initial city placement.
type CitySeed struct {
	Coord Coord
	Size  CitySize
	Score float64 // Desirability score
	Name  string
}

// CitySize categorizes city scale.
type CitySize uint8

const (
	SizeVillage CitySize = iota
	SizeTown
	SizeCity
)

func (s CitySize) String() string {
	switch s {
	case SizeCity:
		return "city"
	case SizeTown:
		return "town"
	}
	return "village"
}

// RoadRadius is how far the road cross of a city reaches from its centre.
func (s CitySize) RoadRadius() int {
	switch s {
	case SizeCity:
		return 6
	case SizeTown:
		return 4
	}
	return 2
}

// PlaceCities finds locations for initial cities, lays their roads and
// marks the centre tile as city-owned. Returns seeds sorted by desirability.
func PlaceCities(m *Map, seed int64, cities, towns, villages int) []CitySeed {
	rng := rand.New(rand.NewSource(seed + 200))

	type scored struct {
		coord Coord
		score float64
	}
	var candidates []scored

	for i := range m.Tiles {
		t := &m.Tiles[i]
		if t.Terrain.IsWater() || t.Terrain == TerrainMountain {
			continue
		}
		if s := cityScore(m, t); s > 0 {
			candidates = append(candidates, scored{t.Coord, s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].coord.Less(candidates[j].coord)
	})

	var seeds []CitySeed
	taken := make(map[Coord]bool)
	place := func(size CitySize, n, minDist int) {
		placed := 0
		for _, c := range candidates {
			if placed >= n {
				break
			}
			if taken[c.coord] || tooClose(c.coord, seeds, minDist) {
				continue
			}
			taken[c.coord] = true
			seeds = append(seeds, CitySeed{Coord: c.coord, Size: size, Score: c.score})
			placed++
		}
	}
	place(SizeCity, cities, 24)
	place(SizeTown, towns, 14)
	place(SizeVillage, villages, 8)

	names := generateNames(rng, len(seeds))
	for i := range seeds {
		seeds[i].Name = names[i]
		layRoads(m, seeds[i])
	}

	return seeds
}

// cityScore evaluates how desirable a tile is for a city centre.
func cityScore(m *Map, t *Tile) float64 {
	score := 0.0

	switch t.Terrain {
	case TerrainPlains:
		score += 3.0
	case TerrainCoast:
		score += 4.0
	case TerrainForest:
		score += 1.5
	case TerrainDesert, TerrainSwamp, TerrainTundra:
		score += 0.5
	default:
		return 0
	}

	// Water access nearby.
	for _, nc := range t.Coord.Neighbors() {
		nt := m.Get(nc)
		if nt != nil && nt.Terrain.IsWater() {
			score += 0.5
			break
		}
	}

	// Flat land builds well.
	flat := 0
	for _, nc := range t.Coord.Neighbors() {
		if nt := m.Get(nc); nt != nil && nt.Height == t.Height {
			flat++
		}
	}
	score += float64(flat) * 0.2

	return score + math.Log1p(t.Rainfall)*0.2
}

// layRoads draws a road cross through the city centre and claims the centre tile.
func layRoads(m *Map, s CitySeed) {
	r := s.Size.RoadRadius()
	for d := -r; d <= r; d++ {
		for _, c := range []Coord{{X: s.Coord.X + d, Y: s.Coord.Y}, {X: s.Coord.X, Y: s.Coord.Y + d}} {
			t := m.Get(c)
			if t == nil || t.Terrain.IsWater() || t.Owner.Kind != OwnerNone {
				continue
			}
			t.Road = true
		}
	}
	if t := m.Get(s.Coord); t != nil {
		t.Road = false
		t.Owner = CityOwner(s.Name)
	}
}

func tooClose(c Coord, existing []CitySeed, minDist int) bool {
	for _, s := range existing {
		if Distance(c, s.Coord) < minDist {
			return true
		}
	}
	return false
}

// generateNames produces procedural city names by combining syllables.
func generateNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)

	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}

	return names
}

// PopulationForSize returns an initial population for a city size.
func PopulationForSize(size CitySize, rng *rand.Rand) uint32 {
	switch size {
	case SizeCity:
		return 2000 + uint32(rng.Intn(3000))
	case SizeTown:
		return 200 + uint32(rng.Intn(800))
	case SizeVillage:
		return 20 + uint32(rng.Intn(80))
	default:
		return 50
	}
}
