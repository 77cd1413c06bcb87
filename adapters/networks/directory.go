package networks

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/layer-3/walletauth/core"
	"gopkg.in/yaml.v3"
)

//go:embed chains.yaml
var defaultChains []byte

type file struct {
	Chains []core.Network `yaml:"chains"`
}

// Directory is a read-only chain directory keyed by network id
type Directory struct {
	byID   map[string]core.Network
	sorted []core.Network
}

// Default returns the embedded directory
func Default() *Directory {
	d, err := Parse(defaultChains)
	if err != nil {
		panic(err)
	}
	return d
}

// Load reads a directory file. An empty path returns the embedded default.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML directory
func Parse(raw []byte) (*Directory, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse networks: %w", err)
	}
	if len(f.Chains) == 0 {
		return nil, fmt.Errorf("networks: no chains defined")
	}

	d := &Directory{byID: make(map[string]core.Network, len(f.Chains))}
	for _, n := range f.Chains {
		n.ID = strings.TrimSpace(n.ID)
		if n.ID == "" {
			return nil, fmt.Errorf("networks: chain %q has no id", n.Name)
		}
		if _, dup := d.byID[n.ID]; dup {
			return nil, fmt.Errorf("networks: duplicate chain id %q", n.ID)
		}
		if n.Name == "" {
			n.Name = n.ID
		}
		d.byID[n.ID] = n
		d.sorted = append(d.sorted, n)
	}
	sort.Slice(d.sorted, func(i, j int) bool {
		return strings.ToLower(d.sorted[i].Name) < strings.ToLower(d.sorted[j].Name)
	})
	return d, nil
}

// Lookup returns the network for id
func (d *Directory) Lookup(id string) (core.Network, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// List returns every network sorted by display name
func (d *Directory) List() []core.Network {
	out := make([]core.Network, len(d.sorted))
	copy(out, d.sorted)
	return out
}
