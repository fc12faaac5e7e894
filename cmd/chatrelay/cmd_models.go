package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/elee1766/chatrelay/src/aisdk"
	"github.com/elee1766/chatrelay/src/app"
)

// ModelsCmd lists the models of the configured provider.
type ModelsCmd struct {
	Search string `arg:"" optional:"" help:"Only show models whose id or name contains this"`
	Show   string `help:"Show one model, matched by id or display name"`
	Format string `help:"Output format (table, json)" enum:"table,json" default:"table"`
}

type modelFinder interface {
	FindModelByName(ctx context.Context, name string) (*aisdk.ModelInfo, error)
}

// Run executes the models command
func (c *ModelsCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}

	client := app.NewClient(cfg, logger)
	if c.Show != "" {
		return c.show(ctx, os.Stdout, client)
	}

	models, err := searchModels(ctx, client, c.Search)
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return printModelsJSON(os.Stdout, models)
	}
	if len(models) == 0 {
		fmt.Printf("No models found matching '%s'\n", c.Search)
		return nil
	}
	return printModelsTable(os.Stdout, models, cfg.Provider.Model)
}

func (c *ModelsCmd) show(ctx context.Context, out io.Writer, finder modelFinder) error {
	model, err := finder.FindModelByName(ctx, c.Show)
	if err != nil {
		return fmt.Errorf("failed to find model: %w", err)
	}
	if c.Format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(model)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", model.ID)
	if model.Name != "" {
		fmt.Fprintf(w, "Name:\t%s\n", model.Name)
	}
	if model.OwnedBy != "" {
		fmt.Fprintf(w, "Owned by:\t%s\n", model.OwnedBy)
	}
	if model.ContextLength > 0 {
		fmt.Fprintf(w, "Context length:\t%d\n", model.ContextLength)
	}
	if model.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", model.Description)
	}
	return w.Flush()
}

func searchModels(ctx context.Context, catalog aisdk.Catalog, query string) ([]*aisdk.ModelInfo, error) {
	models, err := catalog.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return filterModels(models, query), nil
}

func filterModels(models []*aisdk.ModelInfo, query string) []*aisdk.ModelInfo {
	if query == "" {
		return models
	}
	query = strings.ToLower(query)
	var matches []*aisdk.ModelInfo
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.ID), query) ||
			strings.Contains(strings.ToLower(m.Name), query) {
			matches = append(matches, m)
		}
	}
	return matches
}

func printModelsJSON(w io.Writer, models []*aisdk.ModelInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(models)
}

// printModelsTable marks the configured model with an asterisk.
func printModelsTable(out io.Writer, models []*aisdk.ModelInfo, current string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tOWNED BY")
	for _, m := range models {
		mark := ""
		if m.ID == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark, m.ID, m.OwnedBy)
	}
	return w.Flush()
}
