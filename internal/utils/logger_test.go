package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NaslParser/internal/config"
)

func TestInitLoggingJSON(t *testing.T) {
	require.NoError(t, InitLogging(config.LogConfig{Level: "info", Format: "json", Output: "stderr"}))
	t.Cleanup(func() {
		InitLogging(config.LogConfig{Level: "info", Format: "text", Output: "stderr"})
	})

	var buf bytes.Buffer
	SetOutput(&buf)

	logger := NewLogger("nasl")
	logger.Info("解析 %d 个脚本", 3)
	logger.Debug("不应输出")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "nasl", entry["module"])
	assert.Equal(t, "解析 3 个脚本", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestInitLoggingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "naslparser.log")
	require.NoError(t, InitLogging(config.LogConfig{
		Level: "debug", Format: "text", Output: "file", FilePath: path, MaxSize: 1,
	}))
	t.Cleanup(func() {
		InitLogging(config.LogConfig{Level: "info", Format: "text", Output: "stderr"})
	})

	NewLogger("scriptdb").WithField("path", "a.nasl").Debug("写入完成")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "写入完成")
	assert.Contains(t, string(data), "module=scriptdb")
	assert.Contains(t, string(data), "path=a.nasl")
}

func TestInitLoggingInvalid(t *testing.T) {
	assert.Error(t, InitLogging(config.LogConfig{Level: "loud"}))
	assert.Error(t, InitLogging(config.LogConfig{Level: "info", Format: "xml"}))
	assert.Error(t, InitLogging(config.LogConfig{Level: "info", Format: "text", Output: "syslog"}))
}
