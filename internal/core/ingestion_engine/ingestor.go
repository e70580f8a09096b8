package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/inkwellhq/papyrus/internal/core"
)

// DocumentIngestor drives confirmed uploads through the pipeline: analysis,
// partitioning, chunking, enrichment, storage. Each stage records its
// status and progress when it starts, so a crash or failure leaves the
// document showing the stage it died in. Runs are independent; one bad
// document never blocks the queue.
type DocumentIngestor struct {
	db         core.DocumentStore
	objects    core.ObjectClient
	queue      core.JobQueue
	extractor  Extractor
	chunker    *TitleChunker
	enricher   *Enricher
	pool       *ants.Pool
	bucket     string
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewDocumentIngestor(
	db core.DocumentStore,
	objects core.ObjectClient,
	queue core.JobQueue,
	extractor Extractor,
	chunker *TitleChunker,
	enricher *Enricher,
	cfg *PipelineConfig,
	bucket string,
	logger *slog.Logger,
) (*DocumentIngestor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(cfg.IngestWorkers)
	if err != nil {
		return nil, fmt.Errorf("ingest worker pool: %w", err)
	}
	return &DocumentIngestor{
		db:         db,
		objects:    objects,
		queue:      queue,
		extractor:  extractor,
		chunker:    chunker,
		enricher:   enricher,
		pool:       pool,
		bucket:     bucket,
		runTimeout: cfg.RunTimeout(),
		logger:     logger.With("component", "ingestor"),
	}, nil
}

// Start launches the dispatcher that pulls jobs off the queue and hands
// them to the worker pool. It returns immediately; cancel ctx to stop.
func (di *DocumentIngestor) Start(ctx context.Context) {
	go di.dispatch(ctx)
}

func (di *DocumentIngestor) dispatch(ctx context.Context) {
	for {
		job, err := di.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				di.logger.Info("ingest dispatcher stopping")
				return
			}
			di.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := di.pool.Submit(func() {
			// Each run gets its own deadline detached from the dispatcher
			// ctx, so shutdown does not abort documents mid-flight.
			runCtx, cancel := context.WithTimeout(context.Background(), di.runTimeout)
			defer cancel()
			if err := di.ProcessOne(runCtx, job.DocumentID); err != nil {
				di.logger.Error("ingestion run failed", "document_id", job.DocumentID, "error", err)
			}
		}); err != nil {
			di.logger.Error("submit ingest job", "document_id", job.DocumentID, "error", err)
		}
	}
}

// Enqueue hands a confirmed upload to the queue for processing.
func (di *DocumentIngestor) Enqueue(ctx context.Context, job core.IngestJob) error {
	return di.queue.Enqueue(ctx, job)
}

// Close releases the worker pool. Call after the dispatcher ctx is done.
func (di *DocumentIngestor) Close() {
	di.pool.Release()
}

// ProcessOne runs the full pipeline for one document. It only acts on
// documents in queued state, so redelivered or duplicate jobs are no-ops.
func (di *DocumentIngestor) ProcessOne(ctx context.Context, documentID string) error {
	doc, err := di.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", documentID)
	}
	if doc.ProcessingStatus != string(StatusQueued) {
		di.logger.Warn("skipping job for non-queued document",
			"document_id", documentID, "status", doc.ProcessingStatus)
		return nil
	}

	log := di.logger.With("document_id", doc.ID, "file_name", doc.FileName)
	started := time.Now()

	// Analysis covers fetching the object and sniffing its format, so a
	// missing or unreadable file fails here.
	if err := di.setStatus(ctx, doc.ID, StatusAnalysis); err != nil {
		return di.fail(doc.ID, log, err)
	}
	data, err := di.objects.GetFile(ctx, di.bucket, doc.S3Key)
	if err != nil {
		return di.fail(doc.ID, log, &ExtractionError{Op: "fetch " + doc.S3Key, Err: err})
	}

	if err := di.setStatus(ctx, doc.ID, StatusPartitioning); err != nil {
		return di.fail(doc.ID, log, err)
	}
	elements, err := di.extractor.Extract(ctx, doc, data)
	if err != nil {
		return di.fail(doc.ID, log, err)
	}

	if err := di.setStatus(ctx, doc.ID, StatusChunking); err != nil {
		return di.fail(doc.ID, log, err)
	}
	chunks := di.chunker.BuildChunks(elements)

	if err := di.setStatus(ctx, doc.ID, StatusEnrichment); err != nil {
		return di.fail(doc.ID, log, err)
	}
	classifications := make([]Classification, len(chunks))
	for i, ch := range chunks {
		classifications[i] = ClassifyChunk(ch)
	}
	contents := di.enricher.EnrichAll(ctx, chunks, classifications)

	enriched := make([]EnrichedChunk, len(chunks))
	for i := range chunks {
		enriched[i] = EnrichedChunk{
			Chunk:          chunks[i],
			Classification: classifications[i],
			Content:        contents[i],
		}
	}

	if err := di.setStatus(ctx, doc.ID, StatusStorage); err != nil {
		return di.fail(doc.ID, log, err)
	}
	records := BuildRecords(doc.ID, enriched)
	if err := di.db.InsertDocumentChunks(ctx, records); err != nil {
		return di.fail(doc.ID, log, &StorageWriteError{Op: "insert chunks", Err: err})
	}

	if err := di.setStatus(ctx, doc.ID, StatusCompleted); err != nil {
		return di.fail(doc.ID, log, err)
	}

	log.Info("document ingested",
		"elements", len(elements),
		"chunks", len(records),
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}

func (di *DocumentIngestor) setStatus(ctx context.Context, id string, status Status) error {
	if err := di.db.UpdateDocumentStatus(ctx, id, string(status), ProgressFor(status)); err != nil {
		return &StorageWriteError{Op: "set status " + string(status), Err: err}
	}
	return nil
}

// fail marks the document failed, leaving progress_percentage at its last
// recorded value, and passes err back for the caller's log line. A fresh
// context is used so a timed-out run can still record its failure.
func (di *DocumentIngestor) fail(id string, log *slog.Logger, err error) error {
	mctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if merr := di.db.MarkDocumentFailed(mctx, id); merr != nil {
		log.Error("marking document failed", "error", merr)
	}
	log.Error("ingestion failed", "error", err)
	return err
}
