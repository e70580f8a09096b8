package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwellhq/papyrus/internal/config"
	"github.com/inkwellhq/papyrus/internal/core"
	db "github.com/inkwellhq/papyrus/internal/core/database"
	"github.com/inkwellhq/papyrus/internal/core/ingestion_engine"
	"github.com/inkwellhq/papyrus/internal/core/llm"
	objectclient "github.com/inkwellhq/papyrus/internal/core/object-client"
	"github.com/inkwellhq/papyrus/internal/core/queue"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     *ingestion_engine.DocumentIngestor
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	logger := slog.Default()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("object client initialized and ready")

	summarizer, err := newSummarizer(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the summarizer: %w", err)
	}

	pipeCfg, err := ingestion_engine.LoadPipelineConfig(cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	jobQueue, err := newJobQueue(cfg)
	if err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}

	extractor := ingestion_engine.NewFormatExtractor(logger)
	chunker := ingestion_engine.NewTitleChunker(pipeCfg)
	enricher, err := ingestion_engine.NewEnricher(summarizer, pipeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("enricher: %w", err)
	}

	ingestor, err := ingestion_engine.NewDocumentIngestor(
		dbClient, objClient, jobQueue, extractor, chunker, enricher,
		pipeCfg, cfg.BucketName, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("ingestor: %w", err)
	}

	server := NewServer(cfg, dbClient, objClient, ingestor, pipeCfg)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Ingestor:     ingestor,
		Server:       server,
	}, nil
}

func newSummarizer(ctx context.Context, cfg *config.Config) (core.Summarizer, error) {
	switch cfg.SummarizerProvider {
	case "openai":
		return llm.NewOpenAISummarizer(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "gemini", "":
		return llm.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GenModel)
	default:
		return nil, fmt.Errorf("unknown SUMMARIZER_PROVIDER %q", cfg.SummarizerProvider)
	}
}

func newJobQueue(cfg *config.Config) (core.JobQueue, error) {
	if cfg.RedisAddr == "" {
		return queue.NewMemoryQueue(0), nil
	}
	return queue.NewRedisQueue(cfg.RedisAddr, cfg.RedisPassword, "")
}

// Start launches the ingestion dispatcher and then the HTTP server. It
// blocks until the server stops.
func (a *App) Start(ctx context.Context) {
	a.Ingestor.Start(ctx)
	a.Server.Start()
}

func (a *App) Close() {
	a.Ingestor.Close()
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
