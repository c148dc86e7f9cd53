// Package conversationscmd implements the `vibe conversations` command group.
package conversationscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
)

// Command implements `vibe conversations`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the conversations command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs"},
		Short:   "List and manage chat conversations",
		RunE:    c.runList,
	}
	c.cmd.AddCommand(
		newShow(ctx),
		newDelete(ctx),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	convs, fromCache, err := svc.Conversations(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fromCache {
		fmt.Fprintln(out, "(backend unreachable, showing cached conversations)")
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet. Start one with `vibe chat`.")
		return nil
	}

	for _, conv := range convs {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(out, "%s  %s  %s\n", conv.ID, conv.UpdatedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}

// ---------------------------------------------------------------------------
// conversations show
// ---------------------------------------------------------------------------

func newShow(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			detail, err := svc.Conversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			title := detail.Conversation.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(out, "%s  %s\n", detail.Conversation.ID, title)
			for _, msg := range detail.Messages {
				fmt.Fprintf(out, "\n[%s] %s\n", msg.Role, msg.Content)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// conversations delete
// ---------------------------------------------------------------------------

func newDelete(ctx *shared.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s\n", args[0])
			return nil
		},
	}
}
