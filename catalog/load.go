package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed nodes.yaml
var builtinCatalog []byte

type catalogFile struct {
	Nodes []NodeDefinition `yaml:"nodes"`
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*Registry, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Nodes)
}

// LoadFile parses the YAML catalog at path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Load(bytes.NewReader(builtinCatalog))
})

// Default returns the built-in catalog. It is parsed on first use and the same
// registry is returned to every caller afterwards.
func Default() (*Registry, error) {
	return loadDefault()
}

// MustDefault is Default for program initialization; it panics if the
// embedded catalog is malformed.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}
