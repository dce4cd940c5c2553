package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mpolden/ftproxy/config"
	"github.com/mpolden/ftproxy/database"
)

var (
	errUnexpectedArgs = errors.New("unexpected arguments")
	errNoDatabase     = errors.New("no database configured")
)

type opts struct {
	Config string `short:"f" long:"config" description:"Config file" value-name:"FILE" default:"~/.ftproxyrc"`

	logger *slog.Logger
	level  *slog.LevelVar
	w      io.Writer
}

// SetLogger sets the logger of a command. The level is adjusted to the configured log level once
// the config file has been read.
func (o *opts) SetLogger(logger *slog.Logger, level *slog.LevelVar) {
	o.logger = logger
	o.level = level
}

func (o *opts) Logger() *slog.Logger {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o.logger
}

func (o *opts) stdout() io.Writer {
	if o.w == nil {
		return os.Stdout
	}
	return o.w
}

func (o *opts) readConfig() (config.Config, error) {
	cfg, err := config.ReadConfig(o.Config)
	if err != nil {
		return config.Config{}, err
	}
	if o.level != nil {
		var l slog.Level
		if err := l.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			o.level.Set(l)
		}
	}
	return cfg, nil
}

func openDatabase(cfg config.Config) (*database.Client, error) {
	if cfg.Database == "" {
		return nil, errNoDatabase
	}
	return database.New(cfg.Database)
}

// NewLogger creates a colored text logger writing to w.
func NewLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})
	return slog.New(handler)
}
