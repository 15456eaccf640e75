package world

import (
	"math"
	"math/rand"
	"testing"
)

func TestToPosition_KnownValues(t *testing.T) {
	cases := []struct {
		coord TileCoord
		want  Position
	}{
		{TileCoord{0, 0}, Position{0, 0}},
		{TileCoord{1, 0}, Position{RowWidth, 0}},
		{TileCoord{0, 1}, Position{0.5 * RowWidth, RowSpacing}},
		{TileCoord{0, -1}, Position{-0.5 * RowWidth, -RowSpacing}},
		{TileCoord{2, 2}, Position{2 * RowWidth, 2 * RowSpacing}},
		{TileCoord{-3, 3}, Position{-2.5 * RowWidth, 3 * RowSpacing}},
	}
	for _, tc := range cases {
		got := ToPosition(tc.coord)
		if math.Abs(got.X-tc.want.X) > 1e-9 || math.Abs(got.Z-tc.want.Z) > 1e-9 {
			t.Fatalf("ToPosition(%v) = %+v, want %+v", tc.coord, got, tc.want)
		}
	}
}

func TestToPosition_InjectiveOverBoundedGrid(t *testing.T) {
	seen := make(map[Position]TileCoord)
	for x := -60; x <= 60; x++ {
		for y := -60; y <= 60; y++ {
			c := TileCoord{X: x, Y: y}
			p := ToPosition(c)
			if prev, ok := seen[p]; ok {
				t.Fatalf("positions alias: %v and %v both map to %+v", prev, c, p)
			}
			seen[p] = c
		}
	}
}

func TestToPosition_InjectiveRandomPairs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20000; i++ {
		a := TileCoord{X: rng.Intn(20001) - 10000, Y: rng.Intn(20001) - 10000}
		b := TileCoord{X: rng.Intn(20001) - 10000, Y: rng.Intn(20001) - 10000}
		if a == b {
			continue
		}
		if ToPosition(a) == ToPosition(b) {
			t.Fatalf("distinct coords %v and %v map to the same position", a, b)
		}
	}
}

func TestNeighbors_TouchWithoutGaps(t *testing.T) {
	for _, c := range []TileCoord{{0, 0}, {0, 1}, {0, -1}, {3, -2}, {-4, 5}, {-7, -7}} {
		p := ToPosition(c)
		seen := make(map[TileCoord]bool)
		for _, n := range c.Neighbors() {
			if n == c {
				t.Fatalf("%v lists itself as a neighbor", c)
			}
			if seen[n] {
				t.Fatalf("%v lists neighbor %v twice", c, n)
			}
			seen[n] = true

			d := p.Distance(ToPosition(n))
			if math.Abs(d-RowWidth) > 0.01 {
				t.Fatalf("neighbor %v of %v at distance %.4f, want ~%.2f", n, c, d, RowWidth)
			}
		}
	}
}

func TestNeighbors_Symmetric(t *testing.T) {
	for x := -5; x <= 5; x++ {
		for y := -5; y <= 5; y++ {
			c := TileCoord{X: x, Y: y}
			for _, n := range c.Neighbors() {
				found := false
				for _, back := range n.Neighbors() {
					if back == c {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("%v is a neighbor of %v but not vice versa", n, c)
				}
			}
		}
	}
}

func TestArchetype_ParseRoundTrip(t *testing.T) {
	for _, a := range append([]Archetype{ArchetypeNone}, Archetypes...) {
		got, err := ParseArchetype(a.String())
		if err != nil {
			t.Fatalf("parse %s: %v", a, err)
		}
		if got != a {
			t.Fatalf("parse %s = %s", a, got)
		}
	}
	if _, err := ParseArchetype("lava"); err == nil {
		t.Fatal("expected error for unknown archetype")
	}
	if a, _ := ParseArchetype(" pillar "); a != ArchetypePillar {
		t.Fatalf("case-insensitive parse = %s", a)
	}
}

func TestMap_InBoundsAndCounts(t *testing.T) {
	m := NewMap(5)
	if !m.InBounds(TileCoord{0, 0}) {
		t.Fatal("origin should be in bounds")
	}
	if m.InBounds(TileCoord{3, 0}) {
		t.Fatal("(3,0) maps to x=5.31 and should be out of bounds")
	}
	m.Set(&Tile{Coord: TileCoord{0, 0}, Archetype: ArchetypeGround})
	m.Set(&Tile{Coord: TileCoord{1, 0}, Archetype: ArchetypeGround})
	m.Set(&Tile{Coord: TileCoord{0, 1}, Archetype: ArchetypeRock})
	if m.TileCount() != 3 {
		t.Fatalf("count = %d", m.TileCount())
	}
	counts := m.Counts()
	if counts[ArchetypeGround] != 2 || counts[ArchetypeRock] != 1 {
		t.Fatalf("counts = %v", counts)
	}
	if m.Get(TileCoord{9, 9}) != nil {
		t.Fatal("expected nil for unplaced tile")
	}
}
