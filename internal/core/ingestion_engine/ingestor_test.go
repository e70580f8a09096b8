package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/papyrus/internal/core"
	"github.com/inkwellhq/papyrus/internal/models"
)

type statusWrite struct {
	status   string
	progress int
}

type fakeDocumentStore struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	writes    []statusWrite
	failCalls int
	inserted  []models.DocumentChunk
	insertErr error
	statusErr map[string]error
}

func newFakeStore(docs ...*models.Document) *fakeDocumentStore {
	f := &fakeDocumentStore{docs: map[string]*models.Document{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocumentStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statusErr[status]; err != nil {
		return err
	}
	f.writes = append(f.writes, statusWrite{status: status, progress: progress})
	if d, ok := f.docs[id]; ok {
		d.ProcessingStatus = status
		d.ProgressPercentage = progress
	}
	return nil
}

func (f *fakeDocumentStore) MarkDocumentFailed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	if d, ok := f.docs[id]; ok {
		d.ProcessingStatus = string(StatusFailed)
	}
	return nil
}

func (f *fakeDocumentStore) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeDocumentStore) writesSnapshot() []statusWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusWrite(nil), f.writes...)
}

func (f *fakeDocumentStore) statusWalk() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Status, 0, len(f.writes))
	for _, w := range f.writes {
		out = append(out, Status(w.status))
	}
	return out
}

func (f *fakeDocumentStore) insertedSnapshot() []models.DocumentChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DocumentChunk(nil), f.inserted...)
}

func (f *fakeDocumentStore) document(t *testing.T, id string) models.Document {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	require.True(t, ok, "document %s not in fake store", id)
	return *d
}

func (f *fakeDocumentStore) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		return d.ProcessingStatus
	}
	return ""
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	return b, nil
}

func (f *fakeObjectStore) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	return "", errors.New("not supported in tests")
}

func (f *fakeObjectStore) DeleteFile(ctx context.Context, bucket, key string) error {
	return nil
}

func (f *fakeObjectStore) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, errors.New("not supported in tests")
}

func (f *fakeObjectStore) PresignPutObject(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	return "", errors.New("not supported in tests")
}

type fakeJobQueue struct {
	ch chan core.IngestJob
}

func newFakeQueue() *fakeJobQueue {
	return &fakeJobQueue{ch: make(chan core.IngestJob, 8)}
}

func (q *fakeJobQueue) Enqueue(ctx context.Context, job core.IngestJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *fakeJobQueue) Dequeue(ctx context.Context) (core.IngestJob, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return core.IngestJob{}, ctx.Err()
	}
}

func newTestIngestor(t *testing.T, store *fakeDocumentStore, objects *fakeObjectStore, summ core.Summarizer) *DocumentIngestor {
	t.Helper()
	cfg := DefaultPipelineConfig()
	cfg.IngestWorkers = 2
	cfg.EnrichWorkers = 2
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	enricher, err := NewEnricher(summ, cfg, logger)
	require.NoError(t, err)

	ing, err := NewDocumentIngestor(
		store, objects, newFakeQueue(),
		NewFormatExtractor(logger), NewTitleChunker(cfg), enricher,
		cfg, "test-bucket", logger,
	)
	require.NoError(t, err)
	t.Cleanup(ing.Close)
	return ing
}

func queuedDoc(id, fileName, key, contentType string) *models.Document {
	return &models.Document{
		ID:               id,
		ProjectID:        "proj-1",
		FileName:         fileName,
		S3Key:            key,
		ContentType:      contentType,
		ProcessingStatus: string(StatusQueued),
	}
}

func TestProcessOneHappyPath(t *testing.T) {
	store := newFakeStore(queuedDoc("doc-1", "notes.txt", "k1", "text/plain"))
	objects := &fakeObjectStore{objects: map[string][]byte{
		"k1": []byte("Hello world.\n\nSecond paragraph."),
	}}
	fake := &fakeSummarizer{response: "never needed for pure text"}
	ing := newTestIngestor(t, store, objects, fake)

	err := ing.ProcessOne(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []statusWrite{
		{string(StatusAnalysis), 10},
		{string(StatusPartitioning), 30},
		{string(StatusChunking), 50},
		{string(StatusEnrichment), 70},
		{string(StatusStorage), 90},
		{string(StatusCompleted), 100},
	}, store.writesSnapshot())
	assert.True(t, ValidWalk(append([]Status{StatusQueued}, store.statusWalk()...)))

	inserted := store.insertedSnapshot()
	require.Len(t, inserted, 1)
	chunk := inserted[0]
	assert.Equal(t, "doc-1", chunk.DocumentID)
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.Equal(t, "Hello world.\n\nSecond paragraph.", chunk.Content)
	assert.Equal(t, []string{TagText}, chunk.Type)
	assert.Nil(t, chunk.OriginalContent)
	assert.Equal(t, 0, fake.callCount())

	doc := store.document(t, "doc-1")
	assert.Equal(t, string(StatusCompleted), doc.ProcessingStatus)
	assert.Equal(t, 100, doc.ProgressPercentage)
}

func TestProcessOneMissingFileFailsAtAnalysis(t *testing.T) {
	store := newFakeStore(queuedDoc("doc-1", "notes.txt", "missing-key", "text/plain"))
	objects := &fakeObjectStore{objects: map[string][]byte{}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{})

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.Error(t, err)
	var xerr *ExtractionError
	assert.ErrorAs(t, err, &xerr)

	assert.Equal(t, []statusWrite{{string(StatusAnalysis), 10}}, store.writesSnapshot())
	assert.Empty(t, store.insertedSnapshot())
	assert.Equal(t, 1, store.failCalls)

	doc := store.document(t, "doc-1")
	assert.Equal(t, string(StatusFailed), doc.ProcessingStatus)
	assert.Equal(t, 10, doc.ProgressPercentage, "failed keeps the progress of the stage that died")
}

func TestProcessOneUnknownFormatFailsAtPartitioning(t *testing.T) {
	store := newFakeStore(queuedDoc("doc-1", "blob.xyz", "k1", "application/octet-stream"))
	objects := &fakeObjectStore{objects: map[string][]byte{"k1": []byte("junk")}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{})

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.Error(t, err)
	var xerr *ExtractionError
	assert.ErrorAs(t, err, &xerr)

	assert.Equal(t, []statusWrite{
		{string(StatusAnalysis), 10},
		{string(StatusPartitioning), 30},
	}, store.writesSnapshot())

	doc := store.document(t, "doc-1")
	assert.Equal(t, string(StatusFailed), doc.ProcessingStatus)
	assert.Equal(t, 30, doc.ProgressPercentage)
}

func TestProcessOneDocumentNotFound(t *testing.T) {
	store := newFakeStore()
	ing := newTestIngestor(t, store, &fakeObjectStore{}, &fakeSummarizer{})

	err := ing.ProcessOne(context.Background(), "ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, store.writesSnapshot())
}

func TestProcessOneSkipsNonQueuedDocument(t *testing.T) {
	doc := queuedDoc("doc-1", "notes.txt", "k1", "text/plain")
	doc.ProcessingStatus = string(StatusCompleted)
	store := newFakeStore(doc)
	fake := &fakeSummarizer{}
	ing := newTestIngestor(t, store, &fakeObjectStore{}, fake)

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Empty(t, store.writesSnapshot(), "redelivered jobs must not touch the document")
	assert.Empty(t, store.insertedSnapshot())
	assert.Equal(t, 0, store.failCalls)
}

func TestProcessOneSummarizerFailureStillCompletes(t *testing.T) {
	html := "<html><body><p>intro text</p><table><tr><td>a</td><td>b</td></tr></table></body></html>"
	store := newFakeStore(queuedDoc("doc-1", "page.html", "k1", "text/html"))
	objects := &fakeObjectStore{objects: map[string][]byte{"k1": []byte(html)}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{err: errors.New("model down")})

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.NoError(t, err, "enrichment failures are absorbed, not fatal")
	assert.Equal(t, 0, store.failCalls)

	doc := store.document(t, "doc-1")
	assert.Equal(t, string(StatusCompleted), doc.ProcessingStatus)
	assert.Equal(t, 100, doc.ProgressPercentage)

	inserted := store.insertedSnapshot()
	require.NotEmpty(t, inserted)
	var tableChunk *models.DocumentChunk
	for i := range inserted {
		for _, tag := range inserted[i].Type {
			if tag == TagTable {
				tableChunk = &inserted[i]
			}
		}
	}
	require.NotNil(t, tableChunk, "the table chunk must still be stored")
	assert.Contains(t, tableChunk.Content, "summary unavailable")
	require.NotNil(t, tableChunk.OriginalContent)
	assert.Contains(t, *tableChunk.OriginalContent, "<table>")
}

func TestProcessOneMixedChunkGetsOneSummaryCall(t *testing.T) {
	html := "<html><body><p>intro text</p><table><tr><td>a</td><td>b</td></tr></table></body></html>"
	store := newFakeStore(queuedDoc("doc-1", "page.html", "k1", "text/html"))
	objects := &fakeObjectStore{objects: map[string][]byte{"k1": []byte(html)}}
	fake := &fakeSummarizer{response: "a two-cell table with values a and b"}
	ing := newTestIngestor(t, store, objects, fake)

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount())

	inserted := store.insertedSnapshot()
	require.Len(t, inserted, 1)
	assert.Equal(t, "a two-cell table with values a and b", inserted[0].Content)
	assert.Equal(t, []string{TagText, TagTable}, inserted[0].Type)
}

func TestProcessOneInsertFailureMarksFailed(t *testing.T) {
	store := newFakeStore(queuedDoc("doc-1", "notes.txt", "k1", "text/plain"))
	store.insertErr = errors.New("connection refused")
	objects := &fakeObjectStore{objects: map[string][]byte{"k1": []byte("some text")}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{})

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.Error(t, err)
	var serr *StorageWriteError
	assert.ErrorAs(t, err, &serr)

	writes := store.writesSnapshot()
	require.NotEmpty(t, writes)
	assert.Equal(t, statusWrite{string(StatusStorage), 90}, writes[len(writes)-1])

	doc := store.document(t, "doc-1")
	assert.Equal(t, string(StatusFailed), doc.ProcessingStatus)
	assert.Equal(t, 90, doc.ProgressPercentage)
}

func TestProcessOneStatusWriteFailureAborts(t *testing.T) {
	store := newFakeStore(queuedDoc("doc-1", "notes.txt", "k1", "text/plain"))
	store.statusErr = map[string]error{string(StatusEnrichment): errors.New("db blip")}
	objects := &fakeObjectStore{objects: map[string][]byte{"k1": []byte("some text")}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{})

	err := ing.ProcessOne(context.Background(), "doc-1")

	require.Error(t, err)
	var serr *StorageWriteError
	assert.ErrorAs(t, err, &serr)

	writes := store.writesSnapshot()
	assert.Equal(t, statusWrite{string(StatusChunking), 50}, writes[len(writes)-1])
	assert.Empty(t, store.insertedSnapshot())
	assert.Equal(t, 1, store.failCalls)
}

func TestDispatcherRunsEnqueuedJobs(t *testing.T) {
	store := newFakeStore(
		queuedDoc("doc-1", "one.txt", "k1", "text/plain"),
		queuedDoc("doc-2", "two.txt", "k2", "text/plain"),
	)
	objects := &fakeObjectStore{objects: map[string][]byte{
		"k1": []byte("first document body"),
		"k2": []byte("second document body"),
	}}
	ing := newTestIngestor(t, store, objects, &fakeSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	require.NoError(t, ing.Enqueue(ctx, core.IngestJob{DocumentID: "doc-1", ProjectID: "proj-1"}))
	require.NoError(t, ing.Enqueue(ctx, core.IngestJob{DocumentID: "doc-2", ProjectID: "proj-1"}))

	require.Eventually(t, func() bool {
		return store.status("doc-1") == string(StatusCompleted) &&
			store.status("doc-2") == string(StatusCompleted)
	}, 3*time.Second, 10*time.Millisecond)

	assert.Len(t, store.insertedSnapshot(), 2)
}
