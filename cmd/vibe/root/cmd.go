// Package rootcmd wires the root cobra.Command for the vibe CLI binary.
package rootcmd

import (
	"github.com/spf13/cobra"

	bookmarkcmd "github.com/go-ports/vibelog/cmd/vibe/bookmark"
	chatcmd "github.com/go-ports/vibelog/cmd/vibe/chat"
	configcmd "github.com/go-ports/vibelog/cmd/vibe/config"
	conversationscmd "github.com/go-ports/vibelog/cmd/vibe/conversations"
	exportcmd "github.com/go-ports/vibelog/cmd/vibe/export"
	feedcmd "github.com/go-ports/vibelog/cmd/vibe/feed"
	logcmd "github.com/go-ports/vibelog/cmd/vibe/log"
	mcpcmd "github.com/go-ports/vibelog/cmd/vibe/mcp"
	searchcmd "github.com/go-ports/vibelog/cmd/vibe/search"
	"github.com/go-ports/vibelog/cmd/vibe/shared"
	"github.com/go-ports/vibelog/internal/buildinfo"
)

// New creates and returns the root cobra.Command for the vibe CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "vibe",
		Short:         "Vibing u life logging from the terminal",
		Version:       buildinfo.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	root.PersistentFlags().StringVar(
		&ctx.VibeHome, "home", "",
		"Override vibe home directory (default: $VIBE_HOME env → persisted config → ~/.vibelog)",
	)
	root.PersistentFlags().StringVar(
		&ctx.APIURL, "api-url", "",
		"Override backend base URL from config",
	)

	root.AddCommand(
		logcmd.New(ctx).Cmd(),
		feedcmd.New(ctx).Cmd(),
		searchcmd.New(ctx).Cmd(),
		chatcmd.New(ctx).Cmd(),
		conversationscmd.New(ctx).Cmd(),
		bookmarkcmd.New(ctx).Cmd(),
		exportcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
	)

	return root
}
