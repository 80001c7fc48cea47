package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/saulfrancisco-ruizacevedo/go-neoquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProps(t *testing.T) {
	props, err := parseProps([]string{"name=Alice", "age=30", "score=1.5", "active=true", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":   "Alice",
		"age":    int64(30),
		"score":  1.5,
		"active": true,
		"note":   "a=b",
	}, props)

	props, err = parseProps(nil)
	require.NoError(t, err)
	assert.Nil(t, props)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseProps([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestGlobalFlagsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: bolt://file:7687\ndatabase: fromfile\n"), 0o600))

	t.Setenv(neoquery.EnvURL, "bolt://env:7687")
	t.Setenv(neoquery.EnvUser, "envuser")

	flags := &globalFlags{configPath: path, database: "fromflag"}
	cfg, err := flags.config()
	require.NoError(t, err)

	assert.Equal(t, "bolt://env:7687", cfg.URL)
	assert.Equal(t, "envuser", cfg.Username)
	assert.Equal(t, "fromflag", cfg.Database)

	flags.url = "bolt://flag:7687"
	cfg, err = flags.config()
	require.NoError(t, err)
	assert.Equal(t, "bolt://flag:7687", cfg.URL)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"ping", "match"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
