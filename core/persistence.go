package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// persistedState is the on-disk envelope described by spec §6: pretty
// printed JSON of {"vaults": {...}} plus a trailing newline. Mirrors
// core/ledger.go's json.NewDecoder/Encoder snapshot load/save shape.
type persistedState struct {
	Vaults map[string]*Vault `json:"vaults"`
}

// DefaultStatePath matches spec §6's default state-file path.
const DefaultStatePath = "./state/xvault-state.json"

// LoadStore reads the persistence file at path. A missing file yields an
// empty store (spec §4.3); a present-but-unparsable file is fatal, per
// spec ("the store must refuse to start").
func LoadStore(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("xvault: open state file %s: %w", path, err)
	}
	defer f.Close()

	var ps persistedState
	if err := json.NewDecoder(f).Decode(&ps); err != nil {
		return nil, fmt.Errorf("xvault: state file %s is not valid JSON, refusing to start: %w", path, err)
	}
	if ps.Vaults == nil {
		ps.Vaults = make(map[string]*Vault)
	}
	return &Store{vaults: ps.Vaults}, nil
}

// SaveStore rewrites the persistence file at path with the store's current
// contents. Writes to a temporary file in the same directory and renames
// into place so a concurrent reader (or a crash mid-write) never observes
// a half-written file — "atomically-enough for replicated usage" per
// spec §4.3.
func SaveStore(path string, s *Store) error {
	s.mu.RLock()
	ps := persistedState{Vaults: make(map[string]*Vault, len(s.vaults))}
	for id, v := range s.vaults {
		ps.Vaults[id] = v
	}
	s.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("xvault: create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".xvault-state-*.tmp")
	if err != nil {
		return fmt.Errorf("xvault: create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ps); err != nil {
		tmp.Close()
		return fmt.Errorf("xvault: encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("xvault: close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("xvault: rename temp state file into place: %w", err)
	}
	return nil
}

// NewPrettyEncoder returns a json.Encoder configured for two-space
// indentation, used by the "xvault state inspect" CLI introspection
// command to print a snapshot the same way the persistence file is
// formatted on disk.
func NewPrettyEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
