// Package logcmd implements the `vibe log` command.
package logcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
)

// Command implements `vibe log`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	image string
}

// New creates the log command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "log <text>...",
		Short: "Log a life moment to your feed",
		Long: `Log a life moment. The backend classifies the text into a category and
returns an AI insight. Wrap anything you never want to leave this machine
in <private>...</private> tags, or list patterns in <home>/.vibeignore.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}

	c.cmd.Flags().StringVar(&c.image, "image", "", "Path to an image to attach")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Submit(cmd.Context(), text, c.image)
	if err != nil {
		return fmt.Errorf("submission failed (your text is safe, retry with the same command): %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged: %s [%s]\n", res.Entry.ID, res.Entry.Category)
	if res.Entry.AIInsight != "" {
		fmt.Fprintf(out, "Insight: %s\n", res.Entry.AIInsight)
	}
	if len(res.Entry.Tags) > 0 {
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(res.Entry.Tags, ", "))
	}
	return nil
}
