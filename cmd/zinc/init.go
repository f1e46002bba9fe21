package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/amrox/zinc/catalog"
	"github.com/amrox/zinc/coordinator"
	"github.com/amrox/zinc/storage"
)

func initCmd() cli.Command {
	return cli.Command{
		Name:      "init",
		Usage:     "Create a new, empty catalog",
		ArgsUsage: " ",
		Action: func(c *cli.Context) error {
			if mainOpts.catalogID == "" || mainOpts.storageURL == "" || mainOpts.lockURL == "" {
				return fmt.Errorf("init requires -c, -s, and -l")
			}

			backend, err := storage.Open(mainOpts.storageURL)
			if err != nil {
				return err
			}
			coord, err := coordinator.Open(mainOpts.lockURL)
			if err != nil {
				return err
			}

			_, err = catalog.Create(mainOpts.catalogID, backend.BindToCatalog(mainOpts.catalogID), coord)
			return err
		},
	}
}
