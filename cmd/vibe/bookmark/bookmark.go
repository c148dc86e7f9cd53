// Package bookmarkcmd implements the `vibe bookmark` command.
package bookmarkcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
)

// Command implements `vibe bookmark`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	remove bool
}

// New creates the bookmark command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "bookmark <entry-id>",
		Short: "Bookmark a feed entry",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	c.cmd.Flags().BoolVar(&c.remove, "remove", false, "Remove the bookmark instead")

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

	on, err := svc.Bookmark(cmd.Context(), args[0], !c.remove)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if on {
		fmt.Fprintf(out, "Bookmarked %s\n", args[0])
	} else {
		fmt.Fprintf(out, "Removed bookmark from %s\n", args[0])
	}
	return nil
}
