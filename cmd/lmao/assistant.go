package main

import (
	"fmt"
	"time"

	"github.com/poiesic/lmao/ai"
	"github.com/poiesic/lmao/ai/openai"
	"github.com/poiesic/lmao/publish"
	"github.com/urfave/cli/v2"
)

func assistantCommand() *cli.Command {
	return &cli.Command{
		Name:   "assistant",
		Usage:  "Upload batch files and create an OpenAI assistant that searches them",
		Action: assistantAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "OpenAI API key",
			},
			&cli.StringFlag{
				Name:  "base-path",
				Usage: "Directory searched recursively for *.json batch files",
			},
			&cli.StringFlag{
				Name:  "assistant-name",
				Usage: "Name of the assistant and the persona it speaks as",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Assistant model",
			},
			&cli.StringFlag{
				Name:  "vector-store-name",
				Usage: "Name of the created vector store",
				Value: "lmao_vector_store",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent uploads",
				Value: 4,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Attempts per file upload",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Files per vector store file batch",
				Value: publish.DefaultChunkSize,
			},
			&cli.BoolFlag{
				Name:  "reupload-changed",
				Usage: "Upload cached files again when their content changed",
			},
		},
	}
}

func assistantAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	o := &cfg.OpenAI
	overrideString(c, "api-key", &o.APIKey)
	overrideString(c, "base-path", &o.BasePath)
	overrideString(c, "assistant-name", &o.AssistantName)
	overrideString(c, "model", &o.Model)
	overrideString(c, "vector-store-name", &o.VectorStoreName)
	overrideInt(c, "concurrency", &o.Concurrency)
	overrideInt(c, "max-retries", &o.MaxRetries)
	if o.VectorStoreName == "" {
		o.VectorStoreName = c.String("vector-store-name")
	}
	if err := cfg.ValidateOpenAI(); err != nil {
		return err
	}

	aiConfig := ai.NewConfig(
		ai.WithAPIKey(o.APIKey),
		ai.WithBaseURL(o.BaseURL),
		ai.WithModel(o.Model),
		ai.WithVectorStoreName(o.VectorStoreName),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}
	client, err := openai.NewClient(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	uploader, err := publish.NewUploader(client, store.UploadCache(),
		publish.WithPoolSize(o.Concurrency),
		publish.WithMaxRetries(o.MaxRetries),
		publish.WithRetryDelay(time.Second),
		publish.WithReuploadChanged(c.Bool("reupload-changed")),
		publish.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}
	defer uploader.Release()

	publisher := publish.NewPublisher(client, uploader,
		publish.WithChunkSize(c.Int("chunk-size")),
		publish.WithModel(aiConfig.Model),
		publish.WithVectorStoreName(aiConfig.VectorStoreName),
		publish.WithInstructions(openai.AssistantInstructions),
	)

	w := c.App.Writer
	printHeading(w, "Publishing %s as assistant %q", o.BasePath, o.AssistantName)
	result, err := publisher.Run(c.Context, o.BasePath, o.AssistantName)
	if err != nil {
		return fmt.Errorf("publishing failed: %w", err)
	}

	printSuccess(w, "Assistant created")
	printField(w, "assistant", result.AssistantID)
	printField(w, "vector store", result.VectorStoreID)
	printField(w, "files", len(result.FileIDs))
	printField(w, "uploaded", result.Upload.Uploaded)
	printField(w, "cached", result.Upload.Cached)
	for _, path := range result.Upload.Failed {
		printWarning(w, "upload failed: %s", path)
	}
	return nil
}
