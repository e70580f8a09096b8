package core

import (
	"context"
	"io"
	"time"

	"github.com/inkwellhq/papyrus/internal/models"
)

// DocumentStore is the narrow persistence surface the ingestion engine
// needs. It is split out of DbClient so pipeline tests can fake four
// methods instead of the whole client.
type DocumentStore interface {
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)

	// UpdateDocumentStatus persists a status transition together with its
	// progress percentage. The ingestion engine is the only caller once a
	// document has been confirmed.
	UpdateDocumentStatus(ctx context.Context, id string, status string, progress int) error

	// MarkDocumentFailed sets processing_status to failed while leaving
	// progress_percentage at its last recorded value.
	MarkDocumentFailed(ctx context.Context, id string) error

	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
}

// DbClient defines all persistence operations the service needs.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	DocumentStore

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateProject(ctx context.Context, project *models.Project) error
	GetProjectByID(ctx context.Context, id string) (*models.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID string) ([]models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocumentsByProject(ctx context.Context, projectID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocumentChunks(ctx context.Context, documentID string) ([]models.DocumentChunk, error)

	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error)
	ListChatSessionsByProject(ctx context.Context, projectID string) ([]models.ChatSession, error)
	UpdateChatSessionTitle(ctx context.Context, id string, title string) error
	DeleteChatSession(ctx context.Context, id string) error

	CreateChatMessage(ctx context.Context, message *models.ChatMessage) error
	ListChatMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	CountChatMessages(ctx context.Context, sessionID string) (int, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// PresignPutObject returns a presigned PUT URL a client can upload to
	// directly, valid for expires.
	PresignPutObject(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error)
}

// IngestJob is one upload-confirmation event: exactly one pipeline run
// per delivered job.
type IngestJob struct {
	DocumentID string `json:"document_id"`
	ProjectID  string `json:"project_id"`
}

// JobQueue transports ingest jobs from the confirmation endpoint to the
// ingestion engine. Implementations: in-memory channel, Redis list.
type JobQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error

	// Dequeue blocks until a job is available or ctx is done. It returns
	// ctx.Err() on cancellation so worker loops can exit cleanly.
	Dequeue(ctx context.Context) (IngestJob, error)
}
