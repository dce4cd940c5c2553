package main

import (
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/mpolden/ftproxy/cmd"
)

type command interface {
	flags.Commander
	SetLogger(*slog.Logger, *slog.LevelVar)
}

func main() {
	p := flags.NewParser(nil, flags.Default)

	level := new(slog.LevelVar)
	logger := cmd.NewLogger(os.Stderr, level)
	var commands = []struct {
		name, short, long string
		cmd               command
	}{
		{"serve", "Run proxy", "Serves ftp:// and http:// URLs to HTTP proxy clients.", &cmd.Serve{}},
		{"stats", "Show statistics", "Shows request counters and the most recent requests.", &cmd.Stats{}},
		{"gc", "Clean database", "Removes requests older than the configured retention.", &cmd.GC{}},
		{"test", "Test configuration", "Test and print configuration", &cmd.Test{}},
		{"check", "Check FTP site", "Lists an ftp:// URL and compares the result with the proxy's parser.", &cmd.Check{}},
	}
	for _, c := range commands {
		c.cmd.SetLogger(logger, level)
		if _, err := p.AddCommand(c.name, c.short, c.long, c.cmd); err != nil {
			logger.Error("adding command", "name", c.name, "error", err)
			os.Exit(1)
		}
	}
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
}
