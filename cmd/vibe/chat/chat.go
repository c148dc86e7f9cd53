// Package chatcmd implements the `vibe chat` command.
package chatcmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/vibelog/cmd/vibe/shared"
	"github.com/go-ports/vibelog/internal/chat"
)

// Command implements `vibe chat`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	conversationID string
}

// New creates the chat command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "chat [message]...",
		Short: "Talk to the assistant about your life log",
		Long: `Stream a conversation with the assistant. With a message argument a single
turn is sent; without one an interactive session starts. Type /retry to
resend a failed turn and /quit to leave.`,
		RunE: c.run,
	}

	c.cmd.Flags().StringVar(&c.conversationID, "conversation", "", "Continue an existing conversation")

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

	out := cmd.OutOrStdout()
	sess := svc.NewChatSession(c.conversationID)
	sess.OnDelta(func(fragment string) {
		fmt.Fprint(out, fragment)
	})
	sess.OnConversation(func(id, title string, isNew bool) {
		if isNew {
			fmt.Fprintf(out, "(new conversation %s", id)
			if title != "" {
				fmt.Fprintf(out, ": %s", title)
			}
			fmt.Fprintln(out, ")")
		}
	})

	// One-shot mode.
	if len(args) > 0 {
		if err := sess.Send(cmd.Context(), strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Fprintln(out)
		printLastIfFailure(out, sess)
		return nil
	}

	// Interactive mode.
	fmt.Fprintln(out, "Chatting with the assistant. /retry resends a failed turn, /quit exits.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return scanner.Err()
		case "/retry":
			if err := sess.RetryLast(cmd.Context()); err != nil {
				fmt.Fprintf(out, "cannot retry: %v\n", err)
				continue
			}
			fmt.Fprintln(out)
			printLastIfFailure(out, sess)
			continue
		}

		if err := sess.Send(cmd.Context(), line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out)
		printLastIfFailure(out, sess)
	}
	return scanner.Err()
}

// printLastIfFailure surfaces the assistant failure message when the turn
// produced no streamed output (deltas never fired for failure messages).
func printLastIfFailure(out io.Writer, sess *chat.Session) {
	msgs := sess.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if strings.Contains(last.Content, "Please retry.") || last.Content == chat.FallbackNotice {
		fmt.Fprintln(out, last.Content)
	}
}
