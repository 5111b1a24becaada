package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk format used to reseed a tenant's catalog.
type SeedFile struct {
	Tenant string `yaml:"tenant"`
	Items  []Item `yaml:"items"`
}

// LoadFile reads and validates a YAML seed file.
func LoadFile(path string) (SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("catalog: open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML seed document and normalizes its items.
func Decode(r io.Reader) (SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return SeedFile{}, fmt.Errorf("catalog: decode seed file: %w", err)
	}
	items, err := Normalize(seed.Items)
	if err != nil {
		return SeedFile{}, err
	}
	seed.Items = items
	return seed, nil
}
