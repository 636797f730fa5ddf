// Command lattice runs the Lattice knowledge-graph engine: ingest extracted
// observations, serve the HTTP API, or run a consolidation sweep.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/engine"
	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/internal/server"
	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/internal/storage/postgres"
	"github.com/latticehq/lattice/internal/storage/sqlite"
	"github.com/latticehq/lattice/pkg/types"
)

var configPath string

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "lattice",
		Short:         "Entity resolution and memory consolidation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(serveCmd(), ingestCmd(), consolidateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			eng, err := buildEngine(cfg, store, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, eng, store, log)
			addr, err := srv.Start(ctx)
			if err != nil {
				return err
			}
			log.Info().Str("addr", addr).Msg("lattice serving")

			<-ctx.Done()
			log.Info().Msg("shutting down")
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest source documents (JSON), or stdin when no files are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			eng, err := buildEngine(cfg, store, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(args) == 0 {
				return ingestReader(ctx, eng, os.Stdin, "stdin")
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				err = ingestReader(ctx, eng, f, path)
				f.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func ingestReader(ctx context.Context, eng *engine.Engine, r io.Reader, name string) error {
	var doc types.SourceDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if doc.SourceID == "" {
		doc.SourceID = name
	}

	report, err := eng.IngestDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", name, err)
	}
	return printJSON(report)
}

func consolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Run the decay and synthesis sweep over the whole graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			eng, err := buildEngine(cfg, store, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := eng.Consolidate(ctx)
			if report != nil {
				if printErr := printJSON(report); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, log, nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (storage.EntityStore, error) {
	var store storage.EntityStore
	var err error

	switch cfg.Storage.Engine {
	case "postgres":
		store, err = postgres.New(cfg.Storage.PostgresDSN)
	default:
		if err = os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		store, err = sqlite.New(filepath.Join(cfg.Storage.DataPath, "lattice.db"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Engine, err)
	}

	if cfg.Storage.CacheSize > 0 {
		store, err = storage.NewCachedStore(store, cfg.Storage.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	log.Debug().Str("engine", cfg.Storage.Engine).Msg("store ready")
	return store, nil
}

func buildEngine(cfg *config.Config, store storage.EntityStore, log zerolog.Logger) (*engine.Engine, error) {
	llmCfg := llm.Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.OpenAIAPIKey,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout(),
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}
	if cfg.LLM.Provider == "ollama" {
		llmCfg.BaseURL = cfg.LLM.OllamaURL
	}

	gen, err := llm.NewTextGenerator(llmCfg)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Logger:          log,
		EventBufferSize: cfg.Engine.EventBufferSize,
	}
	if gen != nil {
		opts.Arbitrator = llm.NewTextArbitrator(gen)
		opts.Summarizer = llm.NewTextSummarizer(gen)
		log.Info().Str("provider", cfg.LLM.Provider).Str("model", gen.GetModel()).Msg("llm collaborator enabled")
	} else {
		log.Info().Msg("no llm collaborator configured, deterministic fallbacks only")
	}

	embedder, err := llm.NewEmbeddingGenerator(llmCfg, cfg.LLM.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	opts.Embedder = embedder

	return engine.New(store, opts), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
