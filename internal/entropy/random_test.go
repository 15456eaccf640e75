package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSeeded_Reproducible(t *testing.T) {
	a, b := NewSeeded(5), NewSeeded(5)
	for i := 0; i < 100; i++ {
		if a.Float() != b.Float() {
			t.Fatalf("draw %d differs between identically seeded sources", i)
		}
	}
}

func TestCrypto_Range(t *testing.T) {
	s := Crypto()
	for i := 0; i < 1000; i++ {
		v := s.Float()
		if v < 0 || v >= 1 {
			t.Fatalf("draw out of range: %v", v)
		}
	}
}

func TestNewClient_EmptyKeyIsNil(t *testing.T) {
	c := NewClient("")
	if c != nil {
		t.Fatal("expected nil client")
	}
	if c.Enabled() {
		t.Fatal("nil client must not be enabled")
	}
	if v := c.Float(); v < 0 || v >= 1 {
		t.Fatalf("nil client fallback out of range: %v", v)
	}
}

func TestClient_DrainsPoolFromAPI(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data := make([]float64, 100)
		for i := range data {
			data[i] = 0.25
		}
		resp := map[string]any{"result": map[string]any{"random": map[string]any{"data": data}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient("k")
	c.Endpoint = srv.URL
	for i := 0; i < 50; i++ {
		if v := c.Float(); v != 0.25 {
			t.Fatalf("draw %d = %v, want pooled 0.25", i, v)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("api hits = %d, want 1", hits.Load())
	}
}

func TestClient_FallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.Endpoint = srv.URL
	if v := c.Float(); v < 0 || v >= 1 {
		t.Fatalf("fallback out of range: %v", v)
	}
}

func TestSelect(t *testing.T) {
	if _, ok := Select(9, nil).(*Seeded); !ok {
		t.Fatal("non-zero seed should select a seeded source")
	}
	if _, ok := Select(0, nil).(cryptoSource); !ok {
		t.Fatal("no seed and no client should select crypto")
	}
	c := NewClient("k")
	if Select(0, c) != Source(c) {
		t.Fatal("no seed with a client should select the client")
	}
}

func TestClient_BacksOffAfterFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("k")
	c.Endpoint = srv.URL
	for i := 0; i < 20; i++ {
		if v := c.Float(); v < 0 || v >= 1 {
			t.Fatalf("fallback out of range: %v", v)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("api hits = %d, want 1 during backoff", hits.Load())
	}
}
