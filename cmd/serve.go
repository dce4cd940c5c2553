package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mpolden/ftproxy/proxy"
)

type Serve struct {
	opts
	Listen string `short:"l" long:"listen" description:"Listen address, overrides config" value-name:"ADDR"`
}

func (c *Serve) Execute(args []string) error {
	if len(args) != 0 {
		return errUnexpectedArgs
	}
	cfg, err := c.readConfig()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	logger := c.Logger()
	var store proxy.Store
	if cfg.Database != "" {
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	} else {
		logger.Info("request log disabled")
	}
	p, err := proxy.New(&cfg, store, logger)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv := proxy.NewServer(cfg.Listen, p, cfg.MaxClients, cfg.Idle(), logger)
	return srv.ListenAndRun(ctx)
}
