// World generation using layered simplex noise.
// Generates elevation, rainfall and temperature maps, then derives terrain,
// climate and the quantised height used for building flatness.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width       int     // Tiles west-east
	Height      int     // Tiles north-south
	Seed        int64   // Random seed (0 = random)
	SeaLevel    float64 // Elevation threshold for ocean (0.0–1.0)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)
	HeightSteps int     // Number of discrete height levels
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       128,
		Height:      128,
		Seed:        0,
		SeaLevel:    0.25,
		MountainLvl: 0.72,
		HeightSteps: 8,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:       32,
		Height:      32,
		Seed:        42,
		SeaLevel:    0.30,
		MountainLvl: 0.75,
		HeightSteps: 4,
	}
}

// Generate creates a complete world map with terrain and climate.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.HeightSteps <= 0 {
		cfg.HeightSteps = 8
	}

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	m := NewMap(cfg.Width, cfg.Height)
	cx := float64(cfg.Width) / 2
	cy := float64(cfg.Height) / 2
	half := math.Max(cx, cy)

	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			fx := float64(x)
			fy := float64(y)

			elev := octaveNoise(elevNoise, fx, fy, 4, 0.05, 0.5)
			rain := octaveNoise(rainNoise, fx, fy, 3, 0.04, 0.5)
			temp := octaveNoise(tempNoise, fx, fy, 3, 0.03, 0.5)

			// Continental shaping: lower the edges so the map is ringed by water.
			dx := (fx - cx) / half
			dy := (fy - cy) / half
			edgeFalloff := 1.0 - math.Pow(math.Sqrt(dx*dx+dy*dy)/math.Sqrt2, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			// Colder towards the north edge and at altitude.
			temp = temp*0.6 + (fy/float64(cfg.Height))*0.3 + (1.0-elev)*0.1

			t := m.Get(Coord{X: x, Y: y})
			t.Elevation = elev
			t.Rainfall = rain
			t.Temperature = temp
			t.Terrain = deriveTerrain(elev, rain, temp, cfg)
			t.Climate = deriveClimate(t.Terrain, elev, rain, temp)
			t.Height = quantiseHeight(elev, cfg)
		}
	}

	markCoast(m)
	placeRivers(m, seed)

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain, temp float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainOcean
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if temp < 0.25 {
		return TerrainTundra
	}
	if rain < 0.25 && temp > 0.5 {
		return TerrainDesert
	}
	if rain > 0.7 && elev < 0.45 {
		return TerrainSwamp
	}
	if rain > 0.45 && elev > 0.45 {
		return TerrainForest
	}
	return TerrainPlains
}

// deriveClimate maps terrain and weather onto the climate zones descriptors refer to.
func deriveClimate(terrain Terrain, elev, rain, temp float64) Climate {
	switch {
	case terrain == TerrainOcean:
		return ClimateWater
	case temp < 0.15:
		return ClimateArctic
	case terrain == TerrainMountain || elev > 0.65:
		return ClimateRocky
	case temp < 0.3:
		return ClimateTundra
	case terrain == TerrainDesert:
		return ClimateDesert
	case temp > 0.65 && rain > 0.5:
		return ClimateTropic
	case temp > 0.55:
		return ClimateMediterranean
	}
	return ClimateTemperate
}

// quantiseHeight turns land elevation into a small number of build levels.
// All water sits at level 0.
func quantiseHeight(elev float64, cfg GenConfig) int {
	if elev < cfg.SeaLevel {
		return 0
	}
	span := 1.0 - cfg.SeaLevel
	h := int((elev-cfg.SeaLevel)/span*float64(cfg.HeightSteps)) + 1
	if h > cfg.HeightSteps {
		h = cfg.HeightSteps
	}
	return h
}

// markCoast converts low land tiles adjacent to ocean into coast terrain.
func markCoast(m *Map) {
	var toMark []Coord
	for i := range m.Tiles {
		t := &m.Tiles[i]
		if t.Terrain == TerrainOcean {
			continue
		}
		for _, nc := range t.Coord.Neighbors() {
			nt := m.Get(nc)
			if nt != nil && nt.Terrain == TerrainOcean {
				toMark = append(toMark, t.Coord)
				break
			}
		}
	}

	for _, c := range toMark {
		t := m.Get(c)
		// Only plains and forest at low elevation become coast.
		if (t.Terrain == TerrainPlains || t.Terrain == TerrainForest) && t.Elevation < 0.5 {
			t.Terrain = TerrainCoast
		}
	}
}

// placeRivers traces paths from high elevation down to the sea.
func placeRivers(m *Map, seed int64) {
	rng := rand.New(rand.NewSource(seed + 100))

	var sources []Coord
	for i := range m.Tiles {
		t := &m.Tiles[i]
		if t.Elevation > 0.65 && t.Terrain != TerrainOcean {
			sources = append(sources, t.Coord)
		}
	}

	// Only a handful of rivers, not one per mountain.
	numRivers := len(sources) / 40
	if numRivers < 2 {
		numRivers = 2
	}
	if numRivers > 12 {
		numRivers = 12
	}

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > numRivers {
		sources = sources[:numRivers]
	}

	for _, start := range sources {
		traceRiver(m, start)
	}
}

// traceRiver follows the steepest descent from a source tile until reaching
// ocean or running out of downhill path.
func traceRiver(m *Map, start Coord) {
	current := start
	visited := make(map[Coord]bool)
	maxSteps := 200

	for step := 0; step < maxSteps; step++ {
		visited[current] = true
		t := m.Get(current)
		if t == nil || t.Terrain == TerrainOcean {
			break
		}

		if t.Terrain != TerrainMountain && t.Terrain != TerrainCoast {
			t.Terrain = TerrainRiver
		}

		var best *Coord
		bestElev := t.Elevation
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			nt := m.Get(nc)
			if nt == nil {
				continue
			}
			if nt.Elevation < bestElev {
				bestElev = nt.Elevation
				c := nc
				best = &c
			}
		}

		if best == nil {
			break // no downhill path, the river ends in a lake
		}
		current = *best
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for i := range m.Tiles {
		counts[m.Tiles[i].Terrain]++
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainMountain:
		return "Mountain"
	case TerrainCoast:
		return "Coast"
	case TerrainRiver:
		return "River"
	case TerrainDesert:
		return "Desert"
	case TerrainSwamp:
		return "Swamp"
	case TerrainTundra:
		return "Tundra"
	case TerrainOcean:
		return "Ocean"
	default:
		return "Unknown"
	}
}
