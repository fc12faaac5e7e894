package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/elee1766/chatrelay/src/config"
)

// CLI represents the main CLI structure
type CLI struct {
	Config    string `short:"c" type:"path" env:"CHATRELAY_CONFIG" help:"Config file (defaults to the XDG config directory)"`
	LogLevel  string `help:"Log level (debug, info, warn, error), overrides the config file"`
	LogFormat string `help:"Log format (text, json), overrides the config file"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP relay (default)"`
	Send    SendCmd    `cmd:"" help:"Send a message to a running relay and stream the reply"`
	History HistoryCmd `cmd:"" help:"Print the turns of a conversation"`
	Models  ModelsCmd  `cmd:"" help:"List models offered by the configured provider"`
	Migrate MigrateCmd `cmd:"" help:"Database migrations"`
	Schema  SchemaCmd  `cmd:"" help:"Print the JSON Schema of the HTTP API"`
	Show    ConfigCmd  `cmd:"" name:"config" help:"Print the effective configuration"`
}

// load reads the configuration and builds the logger it describes. Flags
// take precedence over the file and the environment.
func (c *CLI) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: c.Config})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format), nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("chatrelay"),
		kong.Description("Streaming chat relay for OpenAI-compatible models"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}
