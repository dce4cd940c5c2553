package cmd

import "github.com/mpolden/ftproxy/database"

type Stats struct {
	opts
	Count int `short:"n" long:"count" description:"Number of recent requests to show" value-name:"N" default:"10"`
}

func (c *Stats) Execute(args []string) error {
	if len(args) != 0 {
		return errUnexpectedArgs
	}
	cfg, err := c.readConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	s, err := db.Stats()
	if err != nil {
		return err
	}
	database.WriteStats(s, c.stdout())
	if c.Count <= 0 {
		return nil
	}
	reqs, err := db.Recent(c.Count)
	if err != nil {
		return err
	}
	if len(reqs) > 0 {
		database.WriteRequests(reqs, c.stdout())
	}
	return nil
}
