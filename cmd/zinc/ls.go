package main

import (
	"fmt"

	"github.com/urfave/cli"
)

func ls() cli.Command {
	return cli.Command{
		Name:      "ls",
		Usage:     "List bundle names, or versions of a bundle",
		ArgsUsage: "[bundle-name]",
		Action: func(c *cli.Context) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}

			args := c.Args()
			if len(args) == 0 {
				names, err := cat.BundleNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Println(name)
				}
				return nil
			}

			versions, err := cat.VersionsForBundle(args[0])
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Println(v)
			}
			return nil
		},
	}
}
