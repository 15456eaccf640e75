// Package entropy provides the shared random source consumed by decoration
// draws, per-instance jitter seeds and the snow particle system.
// A source is either seeded (reproducible), crypto/rand backed, or a
// random.org pool that falls back to crypto/rand when the API is unavailable.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1). Implementations are safe for
// concurrent use, but draws are consumed from one sequential stream.
type Source interface {
	Float() float64
}

// Seeded is a reproducible pseudo-random stream.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a reproducible stream for the given seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float returns the next value in the stream.
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

type cryptoSource struct{}

func (cryptoSource) Float() float64 { return cryptoRandFloat() }

// Crypto returns a non-reproducible source backed by crypto/rand.
func Crypto() Source {
	return cryptoSource{}
}

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Client provides true random numbers from random.org with a local pool.
type Client struct {
	apiKey   string
	Endpoint string
	client   *http.Client

	mu       sync.Mutex
	pool     []float64
	failedAt time.Time // Last failed refill; refills pause for refillBackoff
}

// refillBackoff is how long the pool stays on crypto/rand after a failure.
const refillBackoff = time.Minute

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		Endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Float returns a random float64 in [0, 1). Uses the pool, refilling from
// random.org when low. Falls back to crypto/rand on API failure.
func (c *Client) Float() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < 10 && time.Since(c.failedAt) >= refillBackoff {
		if !c.refill() {
			c.failedAt = time.Now()
		}
	}

	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

func (c *Client) refill() bool {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             1000,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return false
	}

	resp, err := c.client.Post(c.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return false
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return false
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return false
	}

	for _, v := range result.Result.Random.Data {
		if v >= 0 && v < 1 {
			c.pool = append(c.pool, v)
		}
	}
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
	return len(result.Result.Random.Data) > 0
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// cryptoRandFloat generates a random float64 using crypto/rand as fallback.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Select picks the decoration stream: a fixed seed makes decorations
// reproducible, otherwise random.org (when keyed) or crypto/rand.
func Select(seed int64, client *Client) Source {
	if seed != 0 {
		return NewSeeded(seed)
	}
	if client.Enabled() {
		return client
	}
	return Crypto()
}
