// Package searchcmd implements the `vibe search` command.
package searchcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
)

// Command implements `vibe search`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the search command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over your cached entries",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	c.cmd.Flags().IntVar(&c.limit, "limit", 10, "Maximum number of results")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.Search(args[0], c.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found. The search covers entries seen by `vibe feed`.")
		return nil
	}

	fmt.Fprintf(out, "\n Results (%d found) \n", len(results))
	for i := range results {
		e := &results[i]
		fmt.Fprintf(out, "\n [%d] %s  [%s]  %s\n", i+1, e.DisplayTime().Format("2006-01-02"), e.Category, e.ID)
		fmt.Fprintf(out, "     %s\n", e.RawContent)
		if e.AIInsight != "" {
			fmt.Fprintf(out, "     > %s\n", e.AIInsight)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(out, "     #%s\n", strings.Join(e.Tags, " #"))
		}
	}
	return nil
}
