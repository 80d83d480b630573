package config_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/mcp-chat/internal/config"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Equal(t, "conversation.json", cfg.ConversationPath)
	assert.Equal(t, 0, cfg.TokenBudget)
	assert.False(t, cfg.StrictSession)
	assert.Empty(t, cfg.MCPURL)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"AGT_READ_ROOT":      "/srv/data",
		"AGT_TOOL_TIMEOUT":   "2s",
		"AGT_STRICT_SESSION": "true",
		"AGT_TOKEN_BUDGET":   "4000",
		"AGT_PROVIDER":       "ollama",
		"AGT_MODEL":          "llama3.2",
		"AGT_MCP_COMMAND":    "mcp-server --strict",
		"AGT_MCP_URL":        "http://localhost:8000",
	})
	require.NoError(t, err)

	assert.Equal(t, "/srv/data", cfg.ReadRoot)
	assert.Equal(t, 2*time.Second, cfg.ToolTimeout)
	assert.True(t, cfg.StrictSession)
	assert.Equal(t, 4000, cfg.TokenBudget)
	assert.Equal(t, config.ProviderOllama, cfg.Provider)
	assert.Equal(t, "llama3.2", cfg.Model)
	assert.Equal(t, "http://localhost:8000", cfg.MCPURL)

	name, args := cfg.MCPArgv()
	assert.Equal(t, "mcp-server", name)
	assert.Equal(t, []string{"--strict"}, args)
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := config.LoadFrom(map[string]string{"AGT_TOOL_TIMEOUT": "soon"})
	assert.Error(t, err)

	cfg, err := config.LoadFrom(map[string]string{
		"AGT_TOOL_TIMEOUT": "-1s",
		"AGT_PROVIDER":     "gpt",
		"AGT_LOG_LEVEL":    "chatty",
	})
	require.NoError(t, err, "parsing leaves value checks to Validate")
	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "AGT_TOOL_TIMEOUT")
	assert.Contains(t, msg, "AGT_PROVIDER")
	assert.Contains(t, msg, "AGT_LOG_LEVEL")
}

func TestLoad_ReadsProcessEnv(t *testing.T) {
	t.Setenv("AGT_MODEL", "from-env")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
}

func TestMCPArgv_Empty(t *testing.T) {
	name, args := config.Config{}.MCPArgv()
	assert.Empty(t, name)
	assert.Nil(t, args)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]lager.LogLevel{
		"debug": lager.DEBUG,
		"INFO":  lager.INFO,
		"":      lager.INFO,
		"error": lager.ERROR,
		"fatal": lager.FATAL,
	} {
		got, err := config.ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewLogger_HonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := config.Config{LogLevel: "error"}.NewLogger("test", &buf)
	logger.Info("quiet")
	logger.Error("loud", assert.AnError)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "test.loud")
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
}
