package weather

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vreezy/hexsnow/internal/entropy"
)

func TestSpline_AlphaCurve(t *testing.T) {
	var s Spline
	s.AddPoint(0.0, 0.0)
	s.AddPoint(0.35, 1.0)
	s.AddPoint(0.65, 1.0)
	s.AddPoint(1.0, 0.0)

	cases := []struct{ t, want float64 }{
		{-1, 0},
		{0, 0},
		{0.175, 0.5},
		{0.5, 1},
		{0.825, 0.5},
		{1, 0},
		{2, 0},
	}
	for _, tc := range cases {
		if got := s.Get(tc.t); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Get(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
	var empty Spline
	if empty.Get(0.5) != 0 {
		t.Fatal("empty spline should evaluate to 0")
	}
}

func TestSnowfall_SpawnRateAndLifetime(t *testing.T) {
	s := NewSnowfall(SnowConfig{Radius: 100}, entropy.NewSeeded(1))
	s.Update(1)
	if n := s.Len(); n != 100 {
		t.Fatalf("after 1s at rate 100: %d flakes", n)
	}
	for _, p := range s.Particles() {
		if p.MaxLife < 4 || p.MaxLife > 11.5 {
			t.Fatalf("max life %v outside [4, 11.5]", p.MaxLife)
		}
		if p.Velocity[1] > 0 {
			t.Fatalf("flake rising: %v", p.Velocity)
		}
		if math.Abs(float64(p.Position[0])) > 50 || math.Abs(float64(p.Position[2])) > 50 {
			t.Fatalf("flake spawned outside the square: %v", p.Position)
		}
	}

	// Everything spawned in the first second is gone 12s later.
	s.SetIntensity(0)
	s.Update(13)
	if n := s.Len(); n != 0 {
		t.Fatalf("expected all flakes expired, %d left", n)
	}
}

func TestSnowfall_FallsAndFades(t *testing.T) {
	s := NewSnowfall(SnowConfig{Radius: 10, Rate: 5}, entropy.NewSeeded(2))
	s.Update(1)
	before := s.Particles()
	s.SetIntensity(0)
	s.Update(1.5)
	after := s.Particles()
	if len(after) != len(before) {
		t.Fatalf("flakes changed without spawning: %d -> %d", len(before), len(after))
	}

	var sumBefore, sumAfter float32
	for i := range before {
		sumBefore += before[i].Position[1]
		sumAfter += after[i].Position[1]
	}
	if sumAfter >= sumBefore {
		t.Fatal("flakes should fall")
	}
	for _, p := range after {
		if p.Alpha < 0 || p.Alpha > 1 {
			t.Fatalf("alpha out of range: %v", p.Alpha)
		}
	}
}

func TestSnowfall_SortedBackToFront(t *testing.T) {
	s := NewSnowfall(SnowConfig{Radius: 50, Rate: 40}, entropy.NewSeeded(3))
	eye := mgl32.Vec3{0, 30, 60}
	s.SetCamera(eye)
	s.Update(1)
	s.Update(1.1)
	ps := s.Particles()
	for i := 1; i < len(ps); i++ {
		if ps[i-1].Position.Sub(eye).Len() < ps[i].Position.Sub(eye).Len() {
			t.Fatalf("flake %d nearer than flake %d", i-1, i)
		}
	}
}

func TestSnowfall_TimeGoingBackwardsIsIgnored(t *testing.T) {
	s := NewSnowfall(SnowConfig{Radius: 10}, entropy.NewSeeded(4))
	s.Update(2)
	n := s.Len()
	s.Update(1)
	if s.Len() != n {
		t.Fatalf("backwards update changed flake count: %d -> %d", n, s.Len())
	}
}

func TestConditions_SnowIntensity(t *testing.T) {
	var nilCond *Conditions
	if nilCond.SnowIntensity() != 1 {
		t.Fatal("nil conditions should keep the base rate")
	}
	if (&Conditions{IsSnow: true}).SnowIntensity() <= 1 {
		t.Fatal("snow should increase intensity")
	}
	if (&Conditions{IsRain: true}).SnowIntensity() >= 1 {
		t.Fatal("rain should reduce intensity")
	}
}

func TestClient_FetchParsesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Query().Get("appid") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"main":{"temp":-3.5},"weather":[{"main":"Snow","description":"light snow"}],"wind":{"speed":4}}`))
	}))
	defer srv.Close()

	c := NewClient("key", "Tromso,NO")
	c.BaseURL = srv.URL
	cond, err := c.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if !cond.IsSnow || cond.Temp != -3.5 || cond.Description != "light snow" {
		t.Fatalf("conditions = %+v", cond)
	}
	if _, err := c.Fetch(); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("api hits = %d, want 1 (cached)", hits)
	}
}

func TestClient_ErrorStartsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key", "")
	c.BaseURL = srv.URL
	if _, err := c.Fetch(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Fetch(); err == nil {
		t.Fatal("expected backoff error")
	}
	if NewClient("", "") != nil {
		t.Fatal("empty key should give a nil client")
	}
}
