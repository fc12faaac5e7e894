package main

import (
	"context"
	"fmt"

	"github.com/elee1766/chatrelay/src/app"
)

// ServeCmd runs the relay until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address, overrides server.addr"`
}

// Run executes the serve command
func (c *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		return err
	}
	return nil
}
