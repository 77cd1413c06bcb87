package networks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()

	eth, ok := d.Lookup("eth")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", eth.Name)

	_, ok = d.Lookup("solana")
	assert.False(t, ok)

	list := d.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, strings.ToLower(list[i-1].Name), strings.ToLower(list[i].Name))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains:\n  - id: zeta\n    name: Zeta\n  - id: alpha\n"), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []core.Network{{ID: "alpha", Name: "alpha"}, {ID: "zeta", Name: "Zeta"}}, d.List())

	d, err = Load("")
	require.NoError(t, err)
	_, ok := d.Lookup("eth")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":     "chains: []\n",
		"no id":     "chains:\n  - name: Nameless\n",
		"duplicate": "chains:\n  - id: eth\n  - id: eth\n",
		"not yaml":  "chains: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestListIsACopy(t *testing.T) {
	d := Default()
	list := d.List()
	list[0].Name = "mutated"
	assert.NotEqual(t, "mutated", d.List()[0].Name)
}
