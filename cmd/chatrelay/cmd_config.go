package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/elee1766/chatrelay/src/config"
)

// ConfigCmd prints the merged configuration with secrets masked.
type ConfigCmd struct {
	Path bool `help:"Only print the config file in use"`
}

// Run executes the config command
func (c *ConfigCmd) Run(cli *CLI) error {
	loader := config.NewLoader(config.LoadOptions{ConfigFile: cli.Config})
	if c.Path {
		used := loader.UsedFile()
		if used == "" {
			return fmt.Errorf("%w: no config file found", errConfig)
		}
		fmt.Println(used)
		return nil
	}

	cfg, _, err := cli.load()
	if err != nil {
		return err
	}
	if used := loader.UsedFile(); used != "" {
		fmt.Fprintf(os.Stderr, "# %s\n", used)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg.Redacted())
}
