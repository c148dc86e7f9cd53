// Package feedcmd implements the `vibe feed` command.
package feedcmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
	"github.com/go-ports/vibelog/internal/models"
)

// Command implements `vibe feed`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the feed command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "feed",
		Short: "Show your recent feed",
		RunE:  c.run,
	}

	c.cmd.Flags().IntVar(&c.limit, "limit", 0, "Maximum entries (default from config)")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	entries, fromCache, err := svc.History(cmd.Context(), c.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fromCache {
		fmt.Fprintln(out, "(backend unreachable, showing cached entries)")
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "Feed is empty. Log something with `vibe log`.")
		return nil
	}

	for _, e := range entries {
		printEntry(out, e)
	}
	return nil
}

func printEntry(out io.Writer, e *models.FeedEntry) {
	marker := " "
	if e.IsBookmarked {
		marker = "*"
	}
	fmt.Fprintf(out, "\n%s %s  [%s]  %s\n", marker, e.DisplayTime().Format("2006-01-02 15:04"), e.Category, e.ID)
	fmt.Fprintf(out, "  %s\n", e.RawContent)
	if e.AIInsight != "" && e.AIInsight != e.RawContent {
		fmt.Fprintf(out, "  > %s\n", e.AIInsight)
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(out, "  #%s\n", strings.Join(e.Tags, " #"))
	}
}
