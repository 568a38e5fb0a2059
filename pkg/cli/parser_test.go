package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run 在隔离的工作目录中执行一次命令
func run(t *testing.T, args ...string) (*Parser, error) {
	t.Helper()
	p := NewParser()
	p.SetArgs(args)
	return p, p.Parse()
}

func setupPlugins(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)

	plugins := filepath.Join(dir, "plugins")
	require.NoError(t, os.MkdirAll(plugins, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(plugins, "test.nasl"), []byte(testScript), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(plugins, "other.nasl"),
		[]byte(`script_id(10002); script_family(english:"Misc.");`), 0644))
	return plugins
}

func TestParseCommand(t *testing.T) {
	plugins := setupPlugins(t)
	out := filepath.Join(t.TempDir(), "result.json")

	p, err := run(t, "parse", plugins, "--format", "json", "--workers", "2", "-o", out)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Options.Workers)
	assert.Equal(t, "json", p.Options.OutputFormat)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, filepath.Join(plugins, "other.nasl"), docs[0]["path"])
	assert.Equal(t, filepath.Join(plugins, "test.nasl"), docs[1]["path"])
}

func TestParseCommandRequiresArgs(t *testing.T) {
	setupPlugins(t)
	_, err := run(t, "parse")
	assert.Error(t, err)
}

func TestParseCommandInvalidFormat(t *testing.T) {
	plugins := setupPlugins(t)
	_, err := run(t, "parse", plugins, "--format", "html")
	assert.Error(t, err, "配置校验应拒绝未知格式")
}

func TestIndexAndLookup(t *testing.T) {
	plugins := setupPlugins(t)
	db := filepath.Join(t.TempDir(), "scripts.db")

	_, err := run(t, "index", plugins, "--db", db)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "lookup.json")
	_, err = run(t, "lookup", "cve-2021-44228", "--db", db, "--format", "json", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var summaries []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, float64(10001), summaries[0]["script_id"])
	assert.Equal(t, "CRITICAL", summaries[0]["severity"])

	out = filepath.Join(t.TempDir(), "family.json")
	_, err = run(t, "lookup", "--family", "misc.", "--db", db, "--format", "json", "-o", out)
	require.NoError(t, err)

	data, err = os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, float64(10002), summaries[0]["script_id"])

	_, err = run(t, "history", "--db", db)
	assert.NoError(t, err)
}

func TestLookupRequiresQuery(t *testing.T) {
	setupPlugins(t)
	_, err := run(t, "lookup", "--db", filepath.Join(t.TempDir(), "scripts.db"))
	assert.Error(t, err)
}

func TestConfigFileFlag(t *testing.T) {
	plugins := setupPlugins(t)
	cfg := filepath.Join(t.TempDir(), "naslparser.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output:\n  format: csv\n  pretty: true\nscanner:\n  workers: 3\n"), 0644))

	out := filepath.Join(t.TempDir(), "result.csv")
	p, err := run(t, "parse", plugins, "--config", cfg, "-o", out)
	require.NoError(t, err)
	assert.Equal(t, "csv", p.Options.OutputFormat)
	assert.True(t, p.Options.Pretty)
	assert.Equal(t, 3, p.Options.Workers)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "path,ID,Name")
}

// chdir 切换工作目录并在测试结束时恢复（兼容 Go 1.24 之前没有 t.Chdir 的版本）
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
