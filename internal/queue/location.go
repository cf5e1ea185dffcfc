package queue

import (
	"errors"
	"math/rand"
)

var ErrNoOpenTile = errors.New("no open tile available")

type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid describes the placeable area of the world map. Blocked tiles
// are permanent obstructions; transient occupancy is passed per call.
type Grid struct {
	Width   int
	Height  int
	Blocked map[Tile]struct{}
}

// HasOpenTile reports whether at least one placeable tile remains.
// Callers that must not consume other resources before placement can
// check this first.
func HasOpenTile(grid Grid, excluded map[Tile]struct{}) bool {
	if grid.Width <= 0 || grid.Height <= 0 {
		return false
	}
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			t := Tile{X: x, Y: y}
			if _, ok := grid.Blocked[t]; ok {
				continue
			}
			if _, ok := excluded[t]; ok {
				continue
			}
			return true
		}
	}
	return false
}

// SelectBuildingLocation deterministically picks an open tile for a
// match's physical anchor. The same grid, seed and exclusion set
// always yield the same tile; when exactly one tile is open it is
// returned regardless of seed.
func SelectBuildingLocation(grid Grid, seed int64, excluded map[Tile]struct{}) (Tile, error) {
	if grid.Width <= 0 || grid.Height <= 0 {
		return Tile{}, ErrNoOpenTile
	}
	var open []Tile
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			t := Tile{X: x, Y: y}
			if _, ok := grid.Blocked[t]; ok {
				continue
			}
			if _, ok := excluded[t]; ok {
				continue
			}
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return Tile{}, ErrNoOpenTile
	}
	rng := rand.New(rand.NewSource(seed))
	return open[rng.Intn(len(open))], nil
}
