// Package shared holds the context passed to all CLI commands.
package shared

import (
	"strings"

	"github.com/go-ports/vibelog/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// VibeHome overrides the vibe home directory.
	// When empty, resolution falls through to VIBE_HOME env var → persisted config → ~/.vibelog.
	VibeHome string
	// APIURL overrides the backend base URL from config.
	APIURL string
}

// Service builds a service honouring the root flags.
func (c *Context) Service() (*service.Service, error) {
	svc, err := service.New(c.VibeHome)
	if err != nil {
		return nil, err
	}
	if c.APIURL != "" {
		svc.Client.BaseURL = strings.TrimRight(c.APIURL, "/")
	}
	return svc, nil
}
