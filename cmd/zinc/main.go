package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/amrox/zinc/catalog"
	"github.com/amrox/zinc/coordinator"
	"github.com/amrox/zinc/storage"

	_ "github.com/amrox/zinc/drivers/dynamolock"
	_ "github.com/amrox/zinc/drivers/filelock"
	_ "github.com/amrox/zinc/drivers/fs"
	_ "github.com/amrox/zinc/drivers/s3"
)

var mainOpts = struct {
	catalogID  string
	storageURL string
	lockURL    string
}{}

func main() {
	app := cli.NewApp()
	app.Name = "zinc"
	app.Usage = "content-addressed asset catalog"
	app.EnableBashCompletion = true
	app.Commands = []cli.Command{
		initCmd(),
		publish(),
		ls(),
		distribute(),
		verify(),
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "catalog, c",
			Usage:       "catalog id",
			EnvVar:      "ZINC_CATALOG",
			Destination: &mainOpts.catalogID,
		},
		cli.StringFlag{
			Name:        "storage, s",
			Usage:       "storage backend URL (e.g. a directory, or s3://bucket/prefix)",
			EnvVar:      "ZINC_STORAGE",
			Destination: &mainOpts.storageURL,
		},
		cli.StringFlag{
			Name:        "lock, l",
			Usage:       "lock coordinator URL (e.g. filelock:///var/lib/zinc/locks)",
			EnvVar:      "ZINC_LOCK",
			Destination: &mainOpts.lockURL,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openCatalog() (*catalog.Catalog, error) {
	if mainOpts.catalogID == "" {
		return nil, fmt.Errorf("no catalog id given (use -c or ZINC_CATALOG)")
	}
	if mainOpts.storageURL == "" {
		return nil, fmt.Errorf("no storage URL given (use -s or ZINC_STORAGE)")
	}
	if mainOpts.lockURL == "" {
		return nil, fmt.Errorf("no lock coordinator URL given (use -l or ZINC_LOCK)")
	}

	backend, err := storage.Open(mainOpts.storageURL)
	if err != nil {
		return nil, err
	}
	coord, err := coordinator.Open(mainOpts.lockURL)
	if err != nil {
		return nil, err
	}

	return catalog.Open(mainOpts.catalogID, backend.BindToCatalog(mainOpts.catalogID), coord), nil
}
