package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/ansi"

	"github.com/elee1766/chatrelay/src/theme"
)

// HistoryCmd prints a stored conversation.
type HistoryCmd struct {
	relayFlags

	ChatID  string `arg:"" help:"Conversation id"`
	Format  string `help:"Output format (text, json)" enum:"text,json" default:"text"`
	Width   int    `help:"Wrap text at this many columns, 0 to disable" default:"100"`
	NoColor bool   `help:"Disable styled output"`
}

// Run executes the history command
func (c *HistoryCmd) Run(ctx context.Context) error {
	hist, err := c.client().history(ctx, c.ChatID)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hist)
	}

	styles := theme.Default()
	if c.NoColor {
		styles = theme.Plain()
	}
	renderHistory(os.Stdout, styles, hist, c.Width)
	return nil
}

func renderHistory(w io.Writer, styles theme.Styles, hist *historyPayload, width int) {
	fmt.Fprintln(w, styles.Label.Render("chat "+hist.ChatID))
	if len(hist.Turns) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("(no turns)"))
		return
	}
	for _, t := range hist.Turns {
		text := ansi.Strip(t.Content)
		if width > 0 {
			text = ansi.Wordwrap(text, width, "")
		}
		fmt.Fprintf(w, "\n%s\n%s\n", styles.Role(t.Role).Render(t.Role), text)
	}
}
