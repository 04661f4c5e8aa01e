package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderSchemaVersion tracks the schema version for bundle header documents.
const HeaderSchemaVersion = 1

// TerrainParameters records per-region settings as "<region>.<key>" pairs,
// for example "Tal Amin.asteroids" or "Kalon.terrain".
type TerrainParameters map[string]float64

// Set stores value for key under region.
func (p TerrainParameters) Set(region, key string, value float64) {
	p[region+"."+key] = value
}

// Get returns the value stored for key under region.
func (p TerrainParameters) Get(region, key string) (float64, bool) {
	v, ok := p[region+"."+key]
	return v, ok
}

// Clone returns a copy of the parameter map.
func (p TerrainParameters) Clone() TerrainParameters {
	if len(p) == 0 {
		return nil
	}
	clone := make(TerrainParameters, len(p))
	for key, value := range p {
		clone[key] = value
	}
	return clone
}

// Header is the metadata persisted alongside a mission recording.
type Header struct {
	SchemaVersion int               `json:"schema_version"`
	Mission       string            `json:"mission"`
	Seed          string            `json:"seed"`
	Regions       []string          `json:"regions,omitempty"`
	TerrainParams TerrainParameters `json:"terrain_params,omitempty"`
	FilePointer   string            `json:"file_pointer"`
}

// Validate checks the fields the catalog and player depend on.
func (h Header) Validate() error {
	switch {
	case h.SchemaVersion <= 0 || h.SchemaVersion > HeaderSchemaVersion:
		return fmt.Errorf("unsupported header schema %d", h.SchemaVersion)
	case strings.TrimSpace(h.Mission) == "":
		return fmt.Errorf("header names no mission")
	case strings.TrimSpace(h.FilePointer) == "":
		return fmt.Errorf("header points at no manifest")
	}
	return nil
}

// WriteHeader stores header as indented JSON at path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads the header at path and rejects ones the tools cannot use.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode header: %w", err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
