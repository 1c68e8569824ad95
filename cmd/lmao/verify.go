package main

import (
	"fmt"

	"github.com/poiesic/lmao/batch"
	"github.com/poiesic/lmao/verify"
	"github.com/urfave/cli/v2"
)

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check the batch files below a directory",
		ArgsUsage: "<dir>",
		Action:    verifyAction,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-records",
				Usage: "Maximum records per batch file (default: the cap recorded in each manifest)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the report as JSON",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit with status 1 when problems are found",
			},
		},
	}
}

func verifyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("verify takes exactly one directory argument")
	}

	report, err := verify.Verify(c.Args().First(), verify.Options{MaxRecords: c.Int("max-records")})
	if err != nil {
		return err
	}

	w := c.App.Writer
	if c.Bool("json") {
		data, err := batch.Encode(report)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if c.Bool("strict") && !report.OK() {
			return cli.Exit(fmt.Sprintf("%d problems found", len(report.Problems)), 1)
		}
		return nil
	}

	printHeading(w, "Verified %s", report.Dir)
	printField(w, "files", len(report.Files))
	printField(w, "manifests", report.Manifests)
	printField(w, "records", report.Records)
	if report.OK() {
		printSuccess(w, "no problems found")
		return nil
	}
	for _, p := range report.Problems {
		printFailure(w, "%s [%s] %s", p.Path, p.Kind, p.Message)
	}
	if c.Bool("strict") {
		return cli.Exit(fmt.Sprintf("%d problems found", len(report.Problems)), 1)
	}
	return nil
}
