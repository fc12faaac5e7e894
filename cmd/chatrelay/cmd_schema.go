package main

import (
	"encoding/json"
	"os"

	"github.com/elee1766/chatrelay/src/chat"
	"github.com/elee1766/chatrelay/src/schema"
)

// SchemaCmd prints the API schema document.
type SchemaCmd struct {
	MaxMessageBytes int `help:"Message size bound written into the schema" default:"0"`
}

// Run executes the schema command
func (c *SchemaCmd) Run() error {
	limit := c.MaxMessageBytes
	if limit <= 0 {
		limit = chat.DefaultMaxMessageBytes
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schema.APIDocument(limit))
}
