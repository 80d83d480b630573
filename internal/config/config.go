// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
)

// Providers accepted in AGT_PROVIDER.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config is shared by both binaries; command-line flags override it.
type Config struct {
	ReadRoot      string        `env:"AGT_READ_ROOT"`
	WriteRoot     string        `env:"AGT_WRITE_ROOT"`
	ToolTimeout   time.Duration `env:"AGT_TOOL_TIMEOUT" envDefault:"30s"`
	StrictSession bool          `env:"AGT_STRICT_SESSION"`
	LogLevel      string        `env:"AGT_LOG_LEVEL" envDefault:"info"`

	ObserveJSON  bool   `env:"AGT_OBSERVE_JSON"`
	ArtifactsDir string `env:"AGT_ARTIFACTS_DIR"`

	TokenBudget      int    `env:"AGT_TOKEN_BUDGET" envDefault:"0"`
	Provider         string `env:"AGT_PROVIDER" envDefault:"anthropic"`
	Model            string `env:"AGT_MODEL"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	ConversationPath string `env:"AGT_CONVERSATION_PATH" envDefault:"conversation.json"`

	// Tool server for the chat client: a URL selects SSE, otherwise the
	// command is started and spoken to over stdio.
	MCPURL     string `env:"AGT_MCP_URL"`
	MCPCommand string `env:"AGT_MCP_COMMAND" envDefault:"mcp-server"`
}

// Load parses the process environment. Values are checked by Validate once
// command-line overrides have been applied.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.ToolTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("AGT_TOOL_TIMEOUT must be positive, got %s", c.ToolTimeout))
	}
	if c.TokenBudget < 0 {
		result = multierror.Append(result, fmt.Errorf("AGT_TOKEN_BUDGET must not be negative, got %d", c.TokenBudget))
	}
	switch c.Provider {
	case ProviderAnthropic, ProviderOllama:
	default:
		result = multierror.Append(result, fmt.Errorf("AGT_PROVIDER must be %q or %q, got %q", ProviderAnthropic, ProviderOllama, c.Provider))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// MCPArgv splits MCPCommand into a program and its arguments.
func (c Config) MCPArgv() (string, []string) {
	fields := strings.Fields(c.MCPCommand)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// ParseLogLevel maps debug, info, error and fatal to lager levels.
func ParseLogLevel(s string) (lager.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return lager.DEBUG, nil
	case "", "info":
		return lager.INFO, nil
	case "error":
		return lager.ERROR, nil
	case "fatal":
		return lager.FATAL, nil
	default:
		return lager.INFO, fmt.Errorf("AGT_LOG_LEVEL must be debug, info, error or fatal, got %q", s)
	}
}

// NewLogger returns a logger for component writing JSON lines to w at the
// configured level.
func (c Config) NewLogger(component string, w io.Writer) lager.Logger {
	level, _ := ParseLogLevel(c.LogLevel)
	logger := lager.NewLogger(component)
	logger.RegisterSink(lager.NewWriterSink(w, level))
	return logger
}
