// Package main provides the scribe CLI for ingesting SRD documents and
// running queries against the service's pipeline without the HTTP layer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/chunk"
	"github.com/grimoire-labs/arcane-scribe/internal/embedding"
	"github.com/grimoire-labs/arcane-scribe/internal/indexcache"
	"github.com/grimoire-labs/arcane-scribe/internal/ingest"
	"github.com/grimoire-labs/arcane-scribe/internal/llm"
	"github.com/grimoire-labs/arcane-scribe/internal/query"
	"github.com/grimoire-labs/arcane-scribe/internal/retrieval"
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Arcane Scribe SRD management tool",
	Long:  "CLI tool for building SRD vector indexes and querying them locally",
}

var (
	srdID      string
	generative bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Build and publish the vector index for an SRD",
	Long: `Chunks and embeds the given markdown documents, builds the vector
index, and publishes the index artifacts plus the source documents to the
data directory.

Environment variables:
  DATA_DIR       Root of the document/index store (default: ./data)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Run a query against a published SRD index",
	Long: `Loads the SRD index from the data directory and answers the given
question, retrieval-only by default.

Environment variables:
  DATA_DIR       Root of the document/index store (default: ./data)
  OPENAI_API_KEY OpenAI API key for embeddings and generation (required)`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	ingestCmd.Flags().StringVar(&srdID, "srd-id", "dnd5e_srd", "SRD collection identifier")
	queryCmd.Flags().StringVar(&srdID, "srd-id", "dnd5e_srd", "SRD collection identifier")
	queryCmd.Flags().BoolVar(&generative, "generative", false, "invoke the generative model instead of returning raw retrieval")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	docs, err := collectDocuments(args)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no markdown documents found under %s", strings.Join(args, ", "))
	}
	fmt.Printf("Ingesting %d documents into '%s'...\n", len(docs), srdID)

	store, err := blobstore.NewFSStore(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	pipeline := ingest.NewPipeline(chunk.NewChunker(chunk.Options{}), embedder, store, slog.Default())
	result, err := pipeline.Ingest(ctx, srdID, docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingest complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Name, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := blobstore.NewFSStore(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)

	logger := slog.Default()
	processor := query.NewProcessor(
		indexcache.New(store, indexcache.DefaultMaxSize, logger),
		retrieval.New(embedder, retrieval.DefaultTopK),
		query.LLMConfigurator{Configurator: llm.NewConfigurator(embeddingClient.Client(), "", logger)},
		nil, // no response cache for one-shot CLI queries
		logger,
	)

	result := processor.Answer(ctx, query.Request{
		QueryText:           args[0],
		SRDID:               srdID,
		InvokeGenerativeLLM: generative,
	})
	if result.IsError() {
		return fmt.Errorf("%s", result.ErrMessage)
	}

	fmt.Println(result.Answer)
	if result.SourceDocumentsRetrieved > 0 {
		fmt.Printf("\n(%d source chunks retrieved)\n", result.SourceDocumentsRetrieved)
	}
	return nil
}

// collectDocuments reads the given files, expanding directories one level
// into their markdown files.
func collectDocuments(paths []string) ([]ingest.Document, error) {
	var docs []ingest.Document
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			content, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", p, err)
			}
			docs = append(docs, ingest.Document{Name: filepath.Base(p), Content: content})
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			content, err := os.ReadFile(filepath.Join(p, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
			}
			docs = append(docs, ingest.Document{Name: entry.Name(), Content: content})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
