package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli"
)

func distribute() cli.Command {
	return cli.Command{
		Name:      "distribute",
		Usage:     "Point a named distribution at a bundle version",
		ArgsUsage: "distro-name bundle-name version",
		Action: func(c *cli.Context) error {
			args := c.Args()
			if len(args) != 3 {
				return fmt.Errorf("distribute requires distro-name, bundle-name, and version")
			}

			version, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("version must be an integer: %s", args[2])
			}

			cat, err := openCatalog()
			if err != nil {
				return err
			}

			return cat.UpdateDistribution(args[0], args[1], version)
		},
	}
}
