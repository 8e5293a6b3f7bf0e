package synckv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "node.yaml", `
node_id: node-a
bind_addr: "127.0.0.1:9001"
seeds:
  - "127.0.0.1:9002"
  - "127.0.0.1:9003"
discovery: false
leasing: false
`)

	config, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", config.NodeID)
	assert.Equal(t, "127.0.0.1:9001", config.BindAddr)
	assert.Equal(t, []string{"127.0.0.1:9002", "127.0.0.1:9003"}, config.Seeds)
	require.NotNil(t, config.Discovery)
	assert.False(t, *config.Discovery)
	require.NotNil(t, config.Leasing)
	assert.False(t, *config.Leasing)
}

func TestLoadFileJSON(t *testing.T) {
	path := writeConfig(t, "node.json", `{"node_id":"node-b","leasing":true}`)

	config, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "node-b", config.NodeID)
	require.NotNil(t, config.Leasing)
	assert.True(t, *config.Leasing)
	assert.Nil(t, config.Discovery, "unset fields stay nil and defer to defaults")
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "node.toml", `node_id = "x"`)
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFileConfigOptions(t *testing.T) {
	off := false
	fc := &FileConfig{
		NodeID:   "node-a",
		BindAddr: "127.0.0.1:9001",
		Seeds:    []string{"127.0.0.1:9002"},
		Leasing:  &off,
	}

	cfg := defaultConfig()
	for _, opt := range fc.Options() {
		require.NoError(t, opt(&cfg))
	}

	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, "127.0.0.1:9001", cfg.BindAddr)
	assert.Equal(t, []string{"127.0.0.1:9002"}, cfg.Seeds)
	assert.False(t, cfg.Leasing)
	assert.True(t, cfg.Discovery, "untouched fields keep their defaults")
}

func TestFileConfigRoundTripThroughNew(t *testing.T) {
	path := writeConfig(t, "node.yaml", "node_id: node-a\nleasing: false\n")

	config, err := LoadFile(path)
	require.NoError(t, err)

	db, err := New[string, string](append(config.Options(), WithCodec(StringCodec{}))...)
	require.NoError(t, err)
	defer db.Close(context.Background())

	assert.Equal(t, "node-a", db.cfg.NodeID)
	assert.False(t, db.cfg.Leasing)
}
