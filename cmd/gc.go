package cmd

import "time"

type GC struct {
	opts
	Dryrun bool `short:"n" long:"dry-run" description:"Only show what would be deleted"`

	now func() time.Time
}

func (c *GC) Execute(args []string) error {
	if len(args) != 0 {
		return errUnexpectedArgs
	}
	cfg, err := c.readConfig()
	if err != nil {
		return err
	}
	logger := c.Logger()
	if cfg.Retention() == 0 {
		logger.Info("no retention configured, keeping all requests")
		return nil
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	before := now().Add(-cfg.Retention())
	if c.Dryrun {
		n, err := db.CountBefore(before)
		if err != nil {
			return err
		}
		logger.Info("would remove requests", "count", n, "before", before)
		return nil
	}
	n, err := db.DeleteBefore(before)
	if err != nil {
		return err
	}
	logger.Info("removed requests", "count", n, "before", before)
	logger.Info("rebuilding database")
	return db.Vacuum()
}
