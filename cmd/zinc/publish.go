package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/amrox/zinc/catalog"
)

var publishOpts = struct {
	force      bool
	skipArchiv bool
}{}

func publish() cli.Command {
	return cli.Command{
		Name:      "publish",
		Usage:     "Publish a new version of a bundle from a local directory",
		ArgsUsage: "bundle-name src-dir",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:        "force, f",
				Usage:       "publish a new version even if content is unchanged",
				Destination: &publishOpts.force,
			},
			cli.BoolFlag{
				Name:        "skip-archive",
				Usage:       "do not assemble a master tar archive after publish",
				Destination: &publishOpts.skipArchiv,
			},
		},
		Action: func(c *cli.Context) error {
			args := c.Args()
			if len(args) != 2 {
				return fmt.Errorf("publish requires bundle-name and src-dir")
			}

			cat, err := openCatalog()
			if err != nil {
				return err
			}

			result, err := cat.CreateBundleVersion(args[0], args[1], catalog.UpdateOptions{
				Force:             publishOpts.force,
				SkipMasterArchive: publishOpts.skipArchiv,
			})
			if err != nil {
				return err
			}

			if result.Deduped {
				fmt.Printf("content unchanged; %s remains at version %d\n", args[0], result.Version)
			} else {
				fmt.Printf("published %s version %d\n", args[0], result.Version)
			}
			if result.ArchiveWarning != nil {
				fmt.Printf("warning: master archive assembly failed: %s\n", result.ArchiveWarning)
			}
			return nil
		},
	}
}
