package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/elee1766/chatrelay/src/theme"
)

// SendCmd sends one message to a running relay.
type SendCmd struct {
	relayFlags

	Message []string `arg:"" optional:"" help:"Message text; read from stdin when omitted or '-'"`
	Chat    string   `short:"C" help:"Conversation to continue"`
	Raw     bool     `help:"Do not strip escape sequences from the reply"`
	NoColor bool     `help:"Disable styled output"`
}

// Run executes the send command
func (c *SendCmd) Run(ctx context.Context) error {
	message, err := c.message(os.Stdin)
	if err != nil {
		return err
	}

	styles := theme.Default()
	if c.NoColor {
		styles = theme.Plain()
	}

	chatID, err := c.client().send(ctx, c.Chat, message, os.Stdout, c.Raw)
	fmt.Fprintln(os.Stdout)
	if chatID != "" {
		fmt.Fprintln(os.Stderr, styles.Muted.Render("chat "+chatID))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("reply failed"))
		return err
	}
	return nil
}

func (c *SendCmd) message(stdin io.Reader) (string, error) {
	text := strings.Join(c.Message, " ")
	if text == "" || text == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("invalid usage: message is empty")
	}
	return text, nil
}
