// Package mcpcmd implements the `vibe mcp` command.
package mcpcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
	internalmcp "github.com/go-ports/vibelog/internal/mcp"
)

// Command implements `vibe mcp`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the mcp command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Start the vibelog MCP server (stdio transport)",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (*Command) run(cmd *cobra.Command, _ []string) error {
	return internalmcp.Serve(cmd.Context())
}
