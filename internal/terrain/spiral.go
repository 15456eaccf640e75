package terrain

import (
	"iter"

	"github.com/vreezy/hexsnow/internal/world"
)

// Spiral yields tile coordinates outward from the origin. Each axis is
// driven by a positive and a negative counter; the parity of their sum
// picks which one supplies the next value, so x runs -1, 0, -2, 1, -3, 2, ...
// and for every x the same pattern runs over y. An axis stops once both of
// its counters reach bound, covering [-bound, bound-1].
//
// Enumeration order is load-bearing: capacity exhaustion and random draws
// depend on it.
func Spiral(bound int) iter.Seq[world.TileCoord] {
	return func(yield func(world.TileCoord) bool) {
		if bound <= 0 {
			return
		}
		xPositive, xNegative := 0, 1
		for {
			x := alternate(&xPositive, &xNegative)
			yPositive, yNegative := 0, 1
			for {
				y := alternate(&yPositive, &yNegative)
				if !yield(world.TileCoord{X: x, Y: y}) {
					return
				}
				if yPositive >= bound && yNegative >= bound {
					break
				}
			}
			if xPositive >= bound && xNegative >= bound {
				break
			}
		}
	}
}

func alternate(positive, negative *int) int {
	if (*positive+*negative)%2 == 0 {
		v := *positive
		*positive++
		return v
	}
	v := -*negative
	*negative++
	return v
}
