// Command agent is a terminal chat client. Replies stream from Anthropic or
// a local Ollama server; TOOL_CALL lines in a reply are run against an MCP
// tool server and their results appended to the reply.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/lager/v3"
	"github.com/fatih/color"
	flags "github.com/jessevdk/go-flags"

	"github.com/petasbytes/mcp-chat/internal/config"
	"github.com/petasbytes/mcp-chat/internal/mcp"
	"github.com/petasbytes/mcp-chat/internal/provider"
	"github.com/petasbytes/mcp-chat/internal/runner"
	"github.com/petasbytes/mcp-chat/internal/telemetry"
	"github.com/petasbytes/mcp-chat/memory"
)

type AgentCommand struct {
	Provider     string `long:"provider" choice:"anthropic" choice:"ollama" description:"Text generation backend."`
	Model        string `long:"model" description:"Model name."`
	MCPURL       string `long:"mcp-url" description:"Base URL of an SSE tool server."`
	MCPCommand   string `long:"mcp-command" description:"Tool server command started over stdio."`
	NoTools      bool   `long:"no-tools" description:"Chat without tools."`
	Conversation string `long:"conversation" description:"File the conversation is loaded from and saved to."`

	Call      string `long:"call" description:"Invoke one tool, print its output and exit."`
	Args      string `long:"args" default:"{}" description:"JSON arguments for --call."`
	ListTools bool   `long:"list-tools" description:"Print the server's tools and exit."`
}

func (cmd AgentCommand) apply(cfg config.Config) config.Config {
	if cmd.Provider != "" {
		cfg.Provider = cmd.Provider
	}
	if cmd.Model != "" {
		cfg.Model = cmd.Model
	}
	if cmd.MCPURL != "" {
		cfg.MCPURL = cmd.MCPURL
	}
	if cmd.MCPCommand != "" {
		cfg.MCPCommand = cmd.MCPCommand
	}
	if cmd.Conversation != "" {
		cfg.ConversationPath = cmd.Conversation
	}
	return cfg
}

func main() {
	var cmd AgentCommand
	parser := flags.NewParser(&cmd, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		handleError(err)
	}

	cfg, err := config.Load()
	if err != nil {
		handleError(err)
	}
	cfg = cmd.apply(cfg)
	if err := cfg.Validate(); err != nil {
		handleError(err)
	}
	// Keep the terminal readable unless a level was asked for.
	if _, set := os.LookupEnv("AGT_LOG_LEVEL"); !set {
		cfg.LogLevel = "error"
	}
	telemetry.Configure(cfg.ObserveJSON, cfg.ArtifactsDir)
	logger := cfg.NewLogger("agent", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Call != "" || cmd.ListTools {
		if err := runOnce(ctx, cmd, cfg, logger, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			os.Exit(1)
		}
		return
	}

	if err := chat(ctx, cmd, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func handleError(err error) {
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		fmt.Println(err)
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	os.Exit(1)
}

// dial connects to the configured tool server.
func dial(ctx context.Context, cfg config.Config, logger lager.Logger) (*mcp.Client, error) {
	if cfg.MCPURL != "" {
		return mcp.DialSSE(ctx, cfg.MCPURL, logger)
	}
	name, args := cfg.MCPArgv()
	if name == "" {
		return nil, fmt.Errorf("no tool server configured")
	}
	return mcp.DialStdio(ctx, logger, os.Stderr, name, args...)
}

// runOnce handles --call and --list-tools.
func runOnce(ctx context.Context, cmd AgentCommand, cfg config.Config, logger lager.Logger, out io.Writer) error {
	client, err := dial(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect tool server: %w", err)
	}
	defer client.Close()

	if cmd.ListTools {
		return listTools(ctx, client, out)
	}
	return callTool(ctx, client, cmd.Call, cmd.Args, out)
}

func newGenerator(ctx context.Context, cfg config.Config, out io.Writer) (provider.Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		o := provider.NewOllama(cfg.OllamaURL, cfg.Model, nil)
		if !o.IsAvailable(ctx) {
			return nil, fmt.Errorf("ollama is not reachable at %s; start it with `ollama serve`", cfg.OllamaURL)
		}
		if o.Model() == "" {
			models, err := o.Models(ctx)
			if err != nil {
				return nil, err
			}
			if len(models) == 0 {
				return nil, fmt.Errorf("no ollama models installed; pull one with `ollama pull llama3.2`")
			}
			o.SetModel(models[0])
			fmt.Fprintf(out, "Using model %s\n", models[0])
		}
		return o, nil
	default:
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("missing ANTHROPIC_API_KEY; export it before running")
		}
		return provider.NewAnthropic(provider.NewAnthropicClient(), cfg.Model), nil
	}
}

func chat(ctx context.Context, cmd AgentCommand, cfg config.Config, logger lager.Logger) error {
	gen, err := newGenerator(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}

	opts := []runner.Option{
		runner.WithDisplay(os.Stdout),
		runner.WithLogger(logger),
		runner.WithTokenBudget(cfg.TokenBudget),
	}
	if !cmd.NoTools {
		client, err := dial(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: tools unavailable: %v\n", err)
		} else {
			defer client.Close()
			info := client.ServerInfo()
			fmt.Printf("Connected to tool server %s %s\n", info.Name, info.Version)
			opts = append(opts, runner.WithTools(client))
		}
	}

	conv, err := memory.Load(cfg.ConversationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load persisted conversation: %v\n", err)
		conv = memory.NewConversation()
	}

	s := &session{
		runner:      runner.New(gen, opts...),
		conv:        conv,
		persistPath: cfg.ConversationPath,
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		you:         color.New(color.FgHiBlue).SprintFunc(),
		assistant:   color.New(color.FgHiYellow).SprintFunc(),
		notice:      color.New(color.Faint).SprintFunc(),
	}
	if o, ok := gen.(*provider.Ollama); ok {
		s.models = o.Models
	}
	return s.loop(ctx)
}
