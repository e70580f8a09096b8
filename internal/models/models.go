package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Project groups documents and chat sessions under one owner.
type Project struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents one uploaded file and its processing state.
//
// ProcessingStatus walks uploading → queued → analysis → partitioning →
// chunking → enrichment → storage → completed, or drops into failed.
// Only the ingestion engine writes status/progress after confirmation.
type Document struct {
	ID                 string    `db:"id" json:"id"`
	ProjectID          string    `db:"project_id" json:"project_id"`
	FileName           string    `db:"file_name" json:"file_name"`
	S3Key              string    `db:"s3_key" json:"s3_key"`
	ContentType        string    `db:"content_type" json:"content_type"`
	SizeBytes          int64     `db:"size_bytes" json:"size_bytes"`
	ProcessingStatus   string    `db:"processing_status" json:"processing_status"`
	ProgressPercentage int       `db:"progress_percentage" json:"progress_percentage"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk is one persisted retrieval unit of a processed document.
//
// ChunkIndex is the stable zero-based ordinal assigned at formatting time;
// it is contiguous and unique per document and defines retrieval order.
// Type holds the content-kind tags ("text", plus "table"/"image" when the
// chunk carries those), stored as a JSON array. OriginalContent is nil for
// pure text, verbatim HTML for a single table, base64 bytes for a single
// image, or a JSON bundle for mixed content.
type DocumentChunk struct {
	ID              string    `db:"id" json:"id"`
	DocumentID      string    `db:"document_id" json:"document_id"`
	ChunkIndex      int       `db:"chunk_index" json:"chunk_index"`
	PageNumber      int       `db:"page_number" json:"page_number"`
	Type            []string  `db:"chunk_type" json:"type"`
	Content         string    `db:"content" json:"content"`
	OriginalContent *string   `db:"original_content" json:"original_content"`
	CharCount       int       `db:"char_count" json:"char_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ChatSession represents one conversation scoped to a project.
type ChatSession struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
