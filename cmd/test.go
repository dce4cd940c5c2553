package cmd

import "fmt"

type Test struct{ opts }

func (c *Test) Execute(args []string) error {
	if len(args) != 0 {
		return errUnexpectedArgs
	}
	cfg, err := c.readConfig()
	if err != nil {
		return err
	}
	json, err := cfg.JSON()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout(), "%s\n", json)
	return nil
}
