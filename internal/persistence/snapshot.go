package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/vreezy/hexsnow/internal/terrain"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// SnapshotHeader is the first line of a snapshot file.
type SnapshotHeader struct {
	Version    int    `json:"version"`
	RunID      string `json:"run_id"`
	Preset     string `json:"preset"`
	NoiseSeed  int64  `json:"noise_seed"`
	Placements int    `json:"placements"`
}

// Snapshot is a self-contained export of one run.
type Snapshot struct {
	Header SnapshotHeader  `json:"header"`
	Config terrain.Config  `json:"config"`
	Result *terrain.Result `json:"result"`
}

// NewSnapshot builds a snapshot of res.
func NewSnapshot(runID, preset string, noiseSeed int64, res *terrain.Result) Snapshot {
	return Snapshot{
		Header: SnapshotHeader{
			Version:    SnapshotVersion,
			RunID:      runID,
			Preset:     preset,
			NoiseSeed:  noiseSeed,
			Placements: len(res.Placements),
		},
		Config: res.Config,
		Result: res,
	}
}

// WriteSnapshot writes a zstd-compressed snapshot: a JSON header line
// followed by the JSON body.
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadSnapshotHeader reads only the header line of a snapshot.
func ReadSnapshotHeader(path string) (SnapshotHeader, error) {
	var h SnapshotHeader
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Header.Version != SnapshotVersion {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Result != nil {
		snap.Result.Config = snap.Config
	}
	return snap, nil
}
