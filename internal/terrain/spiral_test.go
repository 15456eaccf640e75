package terrain

import (
	"testing"

	"github.com/vreezy/hexsnow/internal/world"
)

func TestSpiral_Order(t *testing.T) {
	var got []world.TileCoord
	for c := range Spiral(2) {
		got = append(got, c)
	}
	// Both axes run -1, 0, -2, 1 for bound 2.
	axis := []int{-1, 0, -2, 1}
	var want []world.TileCoord
	for _, x := range axis {
		for _, y := range axis {
			want = append(want, world.TileCoord{X: x, Y: y})
		}
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSpiral_CoversBoundedSquareOnce(t *testing.T) {
	for _, bound := range []int{1, 3, 10, 25} {
		seen := make(map[world.TileCoord]bool)
		for c := range Spiral(bound) {
			if seen[c] {
				t.Fatalf("bound %d: %v visited twice", bound, c)
			}
			seen[c] = true
			if c.X < -bound || c.X > bound-1 || c.Y < -bound || c.Y > bound-1 {
				t.Fatalf("bound %d: %v outside [-%d, %d]", bound, c, bound, bound-1)
			}
		}
		if len(seen) != 4*bound*bound {
			t.Fatalf("bound %d: visited %d, want %d", bound, len(seen), 4*bound*bound)
		}
	}
}

func TestSpiral_EarlyStopAndEmpty(t *testing.T) {
	n := 0
	for range Spiral(50) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("iterations = %d", n)
	}
	for c := range Spiral(0) {
		t.Fatalf("bound 0 yielded %v", c)
	}
}
