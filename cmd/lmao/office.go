package main

import (
	"fmt"

	"github.com/poiesic/lmao/sharepoint"
	"github.com/urfave/cli/v2"
)

func officeCommand() *cli.Command {
	return &cli.Command{
		Name:   "office",
		Usage:  "Export Office documents a user modified on a SharePoint site",
		Action: officeAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Azure AD application client ID",
			},
			&cli.StringFlag{
				Name:  "client-secret",
				Usage: "Azure AD application client secret",
			},
			&cli.StringFlag{
				Name:  "tenant-id",
				Usage: "Azure AD tenant ID",
			},
			&cli.StringFlag{
				Name:  "site-id",
				Usage: "SharePoint site ID",
			},
			&cli.StringFlag{
				Name:  "user-email",
				Usage: "Email of the user whose documents are exported",
			},
			&cli.StringFlag{
				Name:    "download-dir",
				Aliases: []string{"o"},
				Usage:   "Directory receiving documents, images and batches",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Documents per batch file",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "recursive",
				Usage: "Include documents in nested folders",
			},
		},
	}
}

func officeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s := &cfg.SharePoint
	overrideString(c, "client-id", &s.ClientID)
	overrideString(c, "client-secret", &s.ClientSecret)
	overrideString(c, "tenant-id", &s.TenantID)
	overrideString(c, "site-id", &s.SiteID)
	overrideString(c, "user-email", &s.UserEmail)
	overrideString(c, "download-dir", &s.DownloadDir)
	overrideInt(c, "batch-size", &s.BatchSize)
	overrideBool(c, "recursive", &s.Recursive)
	if err := cfg.ValidateSharePoint(); err != nil {
		return err
	}

	client, err := sharepoint.NewClient(sharepoint.Credentials{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		TenantID:     s.TenantID,
	}, s.SiteID)
	if err != nil {
		return err
	}

	ingestor, err := sharepoint.NewIngestor(sharepoint.Config{
		UserEmail:   s.UserEmail,
		DownloadDir: s.DownloadDir,
		BatchSize:   s.BatchSize,
		Recursive:   s.Recursive,
		MaxTokens:   cfg.Output.MaxTokens,
		Counter:     tokenCounter(cfg),
		Progress:    c.App.ErrWriter,
	}, client)
	if err != nil {
		return fmt.Errorf("failed to create sharepoint ingestor: %w", err)
	}

	w := c.App.Writer
	printHeading(w, "Exporting documents modified by %s to %s", s.UserEmail, s.DownloadDir)
	result, err := ingestor.Run(c.Context)
	if err != nil {
		return fmt.Errorf("sharepoint export failed: %w", err)
	}

	printSuccess(w, "%d of %d documents processed into %d files", result.Processed, result.Matched, len(result.Files))
	printField(w, "listed", result.Listed)
	for _, id := range result.Failed {
		printWarning(w, "document %s skipped", id)
	}
	return nil
}
