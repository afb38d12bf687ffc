package simple

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// checkpointVersion is incremented when the on-disk model format changes.
const checkpointVersion = 1

type checkpointFormat struct {
	Version int
	Config  Config
	Trunk   []Layer
	Heads   [3]Layer
}

// SaveCheckpoint writes the model configuration and weights to path.
func SaveCheckpoint(path string, m *Model) error {
	return writeGob(path, &checkpointFormat{
		Version: checkpointVersion,
		Config:  m.Config,
		Trunk:   m.trunk,
		Heads:   m.heads,
	})
}

// LoadCheckpoint restores a model written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Model, error) {
	var cp checkpointFormat
	if err := readGob(path, &cp); err != nil {
		return nil, err
	}
	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint version mismatch: file=%d expected=%d", cp.Version, checkpointVersion)
	}
	m, err := NewModel(cp.Config)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if len(cp.Trunk) != len(m.trunk) {
		return nil, fmt.Errorf("checkpoint %s: %d trunk layers, config has %d", path, len(cp.Trunk), len(m.trunk))
	}
	for l := range m.trunk {
		if err := sameShape(m.trunk[l], cp.Trunk[l]); err != nil {
			return nil, fmt.Errorf("checkpoint %s: trunk layer %d: %w", path, l, err)
		}
	}
	for k := range m.heads {
		if err := sameShape(m.heads[k], cp.Heads[k]); err != nil {
			return nil, fmt.Errorf("checkpoint %s: head %d: %w", path, k, err)
		}
	}
	m.trunk = cp.Trunk
	m.heads = cp.Heads
	return m, nil
}

func sameShape(want, got Layer) error {
	if len(want.B) != len(got.B) || len(want.W) != len(got.W) {
		return fmt.Errorf("got %d outputs, want %d", len(got.B), len(want.B))
	}
	for j := range want.W {
		if len(want.W[j]) != len(got.W[j]) {
			return fmt.Errorf("got %d inputs, want %d", len(got.W[j]), len(want.W[j]))
		}
	}
	return nil
}

// writeGob encodes v into path atomically: it writes a temp file in the same
// directory and renames it over the target.
func writeGob(path string, v any) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	// after a successful rename the Remove is a no-op
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if err := gob.NewEncoder(tmpFile).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

func readGob(path string, v any) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	if err := gob.NewDecoder(fh).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
