// Package main provides the feira-rag CLI: an HTTP server plus indexing
// and query commands for the exhibition-fair question answering service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/afinal/feira-rag/internal/answer"
	"github.com/afinal/feira-rag/internal/api"
	"github.com/afinal/feira-rag/internal/config"
	"github.com/afinal/feira-rag/internal/embedding"
	"github.com/afinal/feira-rag/internal/indexer"
	"github.com/afinal/feira-rag/internal/knowledge"
	"github.com/afinal/feira-rag/internal/llm"
	"github.com/afinal/feira-rag/internal/retrieval"
	"github.com/afinal/feira-rag/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "feira-rag",
	Short: "Question answering service for exhibition-fair knowledge bases",
	Long: `feira-rag answers exhibitor questions from per-fair Q&A knowledge
bases stored in Qdrant, with semantic search and LLM-grounded answers.

Environment variables:
  OPENAI_API_KEY   OpenAI API key for embeddings and completions (required)
  GROQ_API_KEY     Groq API key, when llm.provider is "groq"
  FEIRARAG_*       Overrides for any config key, e.g. FEIRARAG_QDRANT_HOST`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <collection-id>",
	Short: "Rebuild the vector index for one fair's knowledge base",
	Long: `Drops the fair's vector namespace and rebuilds it from the record
source. Records whose embeddings fail are skipped and reported; the rest
are indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReindex,
}

var indexManualCmd = &cobra.Command{
	Use:   "index-manual <collection-id> <manual.md>",
	Short: "Index a fair's rulebook manual for chunk search",
	Long: `Splits a markdown manual at section boundaries and indexes the
chunks into the fair's chunk namespace, replacing any previous version.`,
	Args: cobra.ExactArgs(2),
	RunE: runIndexManual,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the command line",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var askCollectionID string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default config.yaml)")
	askCmd.Flags().StringVar(&askCollectionID, "collection", "", "fair collection ID to search")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(indexManualCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components shared by all commands.
type app struct {
	cfg      *config.Config
	store    *storage.QdrantStore
	engine   *retrieval.Engine
	synth    *answer.Synthesizer
	pipeline *indexer.Pipeline
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := cfg.Logger()

	store, err := storage.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Embedding.Dimension, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant: %w", err)
	}

	embClient, err := embedding.NewClient(cfg.Embedding.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	generator := embedding.NewGenerator(embClient, embedding.GeneratorConfig{
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		RetryCount: cfg.Embedding.RetryCount,
		RetryDelay: time.Duration(cfg.Embedding.RetryDelay) * time.Second,
	}, logger)

	records, err := knowledge.NewFileStore(cfg.Records.Path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	engine := retrieval.NewEngine(generator, store, records, retrieval.Params{
		Threshold: cfg.Search.Threshold,
		TopK:      cfg.Search.TopK,
	}, logger)

	llmClient, err := llm.NewClient(llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	synth := answer.NewSynthesizer(llmClient, cfg.LLM.Temperature, logger)

	pipeline := indexer.NewPipeline(records, generator, store, logger)

	return &app{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		synth:    synth,
		pipeline: pipeline,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	server := api.NewServer(a.engine, a.synth, a.pipeline, a.store, a.cfg.Logger())
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	return server.Run(addr)
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	collectionID := args[0]
	fmt.Printf("Reindexing collection %s...\n", collectionID)

	result, err := a.pipeline.Reindex(context.Background(), collectionID)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Reindex complete!")
	fmt.Printf("  Records: %d/%d\n", result.Succeeded, result.Total)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed records:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.RecordID, failed.Reason)
		}
	}
	return nil
}

func runIndexManual(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	collectionID, path := args[0], args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manual %s: %w", path, err)
	}

	fmt.Printf("Indexing manual %s for collection %s...\n", path, collectionID)

	result, err := a.pipeline.IndexManual(context.Background(), collectionID, source)
	if err != nil {
		return fmt.Errorf("manual indexing failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Manual indexed!")
	fmt.Printf("  Chunks: %d/%d\n", result.Succeeded, result.Total)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed chunks:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.RecordID, failed.Reason)
		}
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	results, err := a.engine.Search(ctx, args[0], askCollectionID, 0)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	resp := a.synth.Answer(ctx, args[0], results)
	fmt.Println(resp.Text)

	if len(resp.Contexts) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, c := range resp.Contexts {
			fmt.Printf("  - %s (%.2f)\n", c.Question, c.Score)
		}
	}
	return nil
}
