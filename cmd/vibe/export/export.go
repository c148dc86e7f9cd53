// Package exportcmd implements the `vibe export` command.
package exportcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
)

// Command implements `vibe export`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	dir string
}

// New creates the export command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "export",
		Short: "Export cached entries as day-grouped journal markdown",
		RunE:  c.run,
	}

	c.cmd.Flags().StringVar(&c.dir, "dir", "", "Output directory (default <home>/journal)")

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

	paths, err := svc.Export(c.dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(paths) == 0 {
		fmt.Fprintln(out, "Nothing to export. Run `vibe feed` first to populate the cache.")
		return nil
	}
	for _, p := range paths {
		fmt.Fprintf(out, "Wrote %s\n", p)
	}
	return nil
}
