// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	retrievit "github.com/poiesic/retrievit"
	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ingestion"
	"github.com/poiesic/retrievit/search"
	"github.com/poiesic/retrievit/storage"
)

func main() {
	app := &cli.App{
		Name:  "retrievit",
		Usage: "Hybrid retrieval corpus over local documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:     "db",
				Aliases:  []string{"d"},
				Usage:    "Path to BadgerDB database directory",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "gemini-key",
				Usage: "Gemini API key (repeatable; keys are rotated on quota exhaustion)",
			},
			&cli.StringFlag{
				Name:  "gemini-model",
				Usage: "Gemini embedding model name",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "OpenAI-compatible embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "API key for the embedding service",
				Value: "none",
			},
			&cli.IntFlag{
				Name:  "dimensions",
				Usage: "Embedding vector width for the OpenAI-compatible provider",
				Value: 768,
			},
			&cli.StringFlag{
				Name:  "scorer-host",
				Usage: "OpenAI-compatible host URL for relevance scoring (enables reranking)",
			},
			&cli.StringFlag{
				Name:  "scorer-model",
				Usage: "Relevance scoring model name",
			},
			&cli.IntFlag{
				Name:  "hash-dimension",
				Usage: "Vector width of the deterministic hash fallback (0 = default)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest text files as paragraph documents",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Replace existing chunks of each file instead of adding",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the corpus",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity for semantic candidates (0 = default)",
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rerank top candidates with the relevance scorer",
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Metadata equality filter as key=value (repeatable)",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete all chunks of a source",
				ArgsUsage: "SOURCE",
				Action:    deleteCommand,
			},
			{
				Name:   "status",
				Usage:  "Show corpus statistics and provider status",
				Action: statusCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed hash-fallback chunks with a live provider",
				Action: reembedCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openCorpus(c *cli.Context) (*retrievit.Corpus, error) {
	opts := []retrievit.CorpusOption{}

	if keys := c.StringSlice("gemini-key"); len(keys) > 0 {
		opts = append(opts, retrievit.WithGeminiKeys(keys...))
		if model := c.String("gemini-model"); model != "" {
			opts = append(opts, retrievit.WithGeminiModel(model))
		}
	}

	if host := c.String("embedding-host"); host != "" {
		configOpts := []ai.ConfigOption{
			ai.WithEmbeddingHost(host),
			ai.WithAPIKey(c.String("api-key")),
			ai.WithDimensions(c.Int("dimensions")),
		}
		if model := c.String("embedding-model"); model != "" {
			configOpts = append(configOpts, ai.WithEmbeddingModel(model))
		}
		// An explicit scorer host opts into reranking; otherwise the
		// config defaults would silently enable it.
		scorerHost := c.String("scorer-host")
		configOpts = append(configOpts,
			ai.WithScorerHost(scorerHost),
			ai.WithScorerModel(c.String("scorer-model")))

		config := ai.NewConfig(configOpts...)
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, retrievit.WithAIConfig(config))
	}

	if dim := c.Int("hash-dimension"); dim > 0 {
		opts = append(opts, retrievit.WithHashDimension(dim))
	}

	corpus, err := retrievit.NewCorpus(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	return corpus, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	ctx := context.Background()
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		source := filepath.Base(path)
		documents := splitParagraphs(string(data), source)
		if len(documents) == 0 {
			fmt.Printf("%s: no paragraphs found, skipped\n", source)
			continue
		}

		var result *ingestion.Result
		if c.Bool("replace") {
			result, err = corpus.ReplaceSource(ctx, source, documents)
		} else {
			result, err = corpus.Ingest(ctx, documents)
		}
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		degraded := ""
		if result.Degraded {
			degraded = " (degraded embeddings)"
		}
		fmt.Printf("%s: %d chunks stored, %d rejected%s\n",
			source, result.Accepted, result.Rejected, degraded)
	}

	return nil
}

// splitParagraphs turns file contents into paragraph documents. Blank
// lines separate paragraphs; richer document extraction stays outside
// this tool.
func splitParagraphs(text, source string) []ingestion.Document {
	var documents []ingestion.Document
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		documents = append(documents, ingestion.Document{
			Text:   paragraph,
			Source: source,
		})
	}
	return documents
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	filter := storage.Filter{}
	for _, pair := range c.StringSlice("filter") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filter[key] = value
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	resp, err := corpus.Search(context.Background(), search.Request{
		Query:     query,
		TopK:      c.Int("top-k"),
		Threshold: float32(c.Float64("threshold")),
		Rerank:    c.Bool("rerank"),
		Filter:    filter,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if resp.Degraded {
		fmt.Fprintln(os.Stderr, "warning: results are degraded (provider or rerank unavailable)")
	}
	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, result := range resp.Results {
		fmt.Printf("%2d. [%.3f] %s (%s)\n", i+1, result.Score, result.Chunk.Text, result.Chunk.Source)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	source := c.Args().First()
	if source == "" {
		return fmt.Errorf("source is required")
	}

	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	count, err := corpus.DeleteSource(context.Background(), source)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Printf("%s: %d chunks deleted\n", source, count)
	return nil
}

func statusCommand(c *cli.Context) error {
	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	status, err := corpus.Status(context.Background())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	fmt.Printf("Backend:  %s\n", status.Store.BackendKind)
	fmt.Printf("Chunks:   %d\n", status.Store.TotalChunks)
	fmt.Printf("Sources:  %d\n", status.Store.TotalSources)
	for dim, count := range status.Store.Dimensions {
		fmt.Printf("  %d-dim: %d chunks\n", dim, count)
	}

	fmt.Println("Providers:")
	for _, provider := range status.Providers {
		active := ""
		if provider.Active {
			active = " (active)"
		}
		fmt.Printf("  %s, %d-dim%s\n", provider.Name, provider.Dimension, active)
	}

	if status.Rotation != nil {
		fmt.Println("Gemini keys:")
		for _, cred := range status.Rotation.Credentials {
			fmt.Printf("  %s: %s\n", cred.Identifier, cred.Status)
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	corpus, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer corpus.Close()

	if err := corpus.Reembed(context.Background(), os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
