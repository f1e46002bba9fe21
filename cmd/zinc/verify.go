package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/amrox/zinc/catalog"
)

var verifyOpts = struct {
	fullSweep bool
}{}

func verify() cli.Command {
	return cli.Command{
		Name:  "verify",
		Usage: "Check the catalog index against storage and report discrepancies",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:        "full",
				Usage:       "also sweep the object store for unreferenced objects",
				Destination: &verifyOpts.fullSweep,
			},
		},
		Action: func(c *cli.Context) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}

			findings, err := cat.Verify(catalog.VerifyOptions{FullSweep: verifyOpts.fullSweep})
			if err != nil {
				return err
			}

			for _, f := range findings {
				fmt.Println(f.String())
			}
			if len(findings) > 0 {
				return fmt.Errorf("%d discrepancies found", len(findings))
			}
			return nil
		},
	}
}
