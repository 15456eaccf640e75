package weather

// Spline interpolates linearly between control points added in ascending
// order of t. Outside the control range it holds the end values.
type Spline struct {
	points [][2]float64
}

// AddPoint appends a control point.
func (s *Spline) AddPoint(t, v float64) {
	s.points = append(s.points, [2]float64{t, v})
}

// Get evaluates the spline at t.
func (s *Spline) Get(t float64) float64 {
	if len(s.points) == 0 {
		return 0
	}

	p1 := 0
	for i, p := range s.points {
		if p[0] >= t {
			break
		}
		p1 = i
	}
	p2 := min(len(s.points)-1, p1+1)

	if p1 == p2 {
		return s.points[p1][1]
	}

	a, b := s.points[p1], s.points[p2]
	f := (t - a[0]) / (b[0] - a[0])
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return a[1] + f*(b[1]-a[1])
}
