// cmd/posctl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/pos-ledger/internal/export"
)

// Build information injected at compile time
var Version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "posctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "posctl",
		Usage:   "operate the point-of-sale ledger from a terminal",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level written to stderr",
				EnvVars: []string{"POSCTL_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "initialize the catalog, from the default products or a workbook",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Usage: "catalog workbook (.xlsx) to import"},
				},
				Action: seedAction,
			},
			{
				Name:   "products",
				Usage:  "list the catalog",
				Action: productsAction,
			},
			{
				Name:  "sales",
				Usage: "list recorded sales",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pending", Usage: "list the offline queue instead of the sale log"},
				},
				Action: salesAction,
			},
			{
				Name:   "sync",
				Usage:  "move pending offline sales into the sale log",
				Action: syncAction,
			},
			{
				Name:      "export",
				Usage:     "write a products or sales export",
				ArgsUsage: "products|sales",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: string(export.FormatCSV), Usage: "csv or xlsx"},
					&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, defaults to a timestamped name"},
					&cli.StringFlag{Name: "month", Usage: "only sales from YYYY-MM"},
					&cli.BoolFlag{Name: "include-pending", Usage: "include unsynced offline sales"},
				},
				Action: exportAction,
			},
			{
				Name:  "hash-password",
				Usage: "print a bcrypt hash for POS_USERS",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password to hash, read from stdin when omitted"},
					&cli.IntFlag{Name: "cost", Usage: "bcrypt cost, defaults to BCRYPT_COST"},
				},
				Action: hashPasswordAction,
			},
		},
	}
}
