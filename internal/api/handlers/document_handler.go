package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwellhq/papyrus/internal/config"
	"github.com/inkwellhq/papyrus/internal/core"
	"github.com/inkwellhq/papyrus/internal/core/ingestion_engine"
	"github.com/inkwellhq/papyrus/internal/models"
)

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	ingestor     *ingestion_engine.DocumentIngestor
	cfg          *config.Config
	pipeCfg      *ingestion_engine.PipelineConfig
}

func NewDocumentHandler(
	dbclient core.DbClient,
	objectclient core.ObjectClient,
	ing *ingestion_engine.DocumentIngestor,
	cfg *config.Config,
	pipeCfg *ingestion_engine.PipelineConfig,
) *DocumentHandler {
	return &DocumentHandler{
		dbclient:     dbclient,
		objectclient: objectclient,
		ingestor:     ing,
		cfg:          cfg,
		pipeCfg:      pipeCfg,
	}
}

type uploadURLRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// CreateUploadURL registers a document in uploading state and hands the
// client a presigned PUT URL, so the file bytes go straight to S3.
func (h *DocumentHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", 400)
		return
	}
	if req.FileName == "" {
		http.Error(w, "file_name is required", 400)
		return
	}
	if req.SizeBytes > h.pipeCfg.MaxUploadBytes() {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Sanitize filename to prevent path traversal or invalid characters
	cleanFilename := filepath.Base(req.FileName)
	docID := uuid.NewString()
	s3Key := objectKey(project.ID, docID, cleanFilename)

	expires := time.Duration(h.cfg.PresignExpiryMins) * time.Minute
	uploadURL, err := h.objectclient.PresignPutObject(r.Context(), h.cfg.BucketName, s3Key, contentType, expires)
	if err != nil {
		http.Error(w, fmt.Sprintf("presign failed: %v", err), 500)
		return
	}

	now := time.Now()
	doc := &models.Document{
		ID:               docID,
		ProjectID:        project.ID,
		FileName:         cleanFilename,
		S3Key:            s3Key,
		ContentType:      contentType,
		SizeBytes:        req.SizeBytes,
		ProcessingStatus: string(ingestion_engine.StatusUploading),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.dbclient.CreateDocument(r.Context(), doc); err != nil {
		http.Error(w, fmt.Sprintf("failed to store document metadata: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"document_id": doc.ID,
		"upload_url":  uploadURL,
		"s3_key":      s3Key,
	})
}

// ConfirmUpload moves a document from uploading to queued and enqueues its
// pipeline run. Repeated confirms are no-ops: a document only enters the
// queue from uploading state.
func (h *DocumentHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	doc, ok := h.requireDocument(w, r, project.ID)
	if !ok {
		return
	}

	if doc.ProcessingStatus != string(ingestion_engine.StatusUploading) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
		return
	}

	queued := ingestion_engine.StatusQueued
	if err := h.dbclient.UpdateDocumentStatus(r.Context(), doc.ID, string(queued), ingestion_engine.ProgressFor(queued)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.ingestor.Enqueue(r.Context(), core.IngestJob{DocumentID: doc.ID, ProjectID: project.ID}); err != nil {
		// Put the document back in uploading so the client can confirm
		// again; a queued row with no job would never be picked up.
		h.releaseToUploading(r.Context(), doc.ID)
		http.Error(w, fmt.Sprintf("queueing failed: %v", err), 500)
		return
	}

	doc.ProcessingStatus = string(queued)
	doc.ProgressPercentage = ingestion_engine.ProgressFor(queued)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// UploadDocument handles direct multipart upload through the API process,
// for clients that cannot use presigned URLs. The document lands already
// queued since the bytes are in S3 by the time the row is written.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.pipeCfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "file too large or malformed form", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Sanitize filename to prevent path traversal or invalid characters
	cleanFilename := filepath.Base(header.Filename)
	docID := uuid.NewString()
	s3Key := objectKey(project.ID, docID, cleanFilename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if _, err := h.objectclient.UploadFile(uploadctx, h.cfg.BucketName, s3Key, file, contentType); err != nil {
		http.Error(w, fmt.Sprintf("upload failed: %v", err), 500)
		return
	}

	now := time.Now()
	doc := &models.Document{
		ID:               docID,
		ProjectID:        project.ID,
		FileName:         cleanFilename,
		S3Key:            s3Key,
		ContentType:      contentType,
		SizeBytes:        header.Size,
		ProcessingStatus: string(ingestion_engine.StatusQueued),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.dbclient.CreateDocument(uploadctx, doc); err != nil {
		slog.Error("db insert failed", "document_id", docID, "error", err)
		http.Error(w, fmt.Sprintf("failed to store document metadata: %v", err), http.StatusInternalServerError)
		return
	}

	if err := h.ingestor.Enqueue(r.Context(), core.IngestJob{DocumentID: doc.ID, ProjectID: project.ID}); err != nil {
		// The bytes are in S3 but no pipeline run will come; drop back to
		// uploading so a later confirm can queue the document.
		h.releaseToUploading(r.Context(), doc.ID)
		http.Error(w, fmt.Sprintf("queueing failed: %v", err), 500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// releaseToUploading reverses a queued transition whose job never made it
// into the queue.
func (h *DocumentHandler) releaseToUploading(ctx context.Context, docID string) {
	uploading := ingestion_engine.StatusUploading
	if err := h.dbclient.UpdateDocumentStatus(ctx, docID, string(uploading), ingestion_engine.ProgressFor(uploading)); err != nil {
		slog.Error("releasing document after enqueue failure", "document_id", docID, "error", err)
	}
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	documents, err := h.dbclient.ListDocumentsByProject(r.Context(), project.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

func (h *DocumentHandler) GetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	doc, ok := h.requireDocument(w, r, project.ID)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":                  doc.ID,
		"processing_status":   doc.ProcessingStatus,
		"progress_percentage": doc.ProgressPercentage,
	})
}

func (h *DocumentHandler) GetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	doc, ok := h.requireDocument(w, r, project.ID)
	if !ok {
		return
	}

	chunks, err := h.dbclient.ListDocumentChunks(r.Context(), doc.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chunks)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	doc, ok := h.requireDocument(w, r, project.ID)
	if !ok {
		return
	}

	if err := h.dbclient.DeleteDocument(r.Context(), doc.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Object cleanup is best effort; an orphaned S3 key is harmless.
	if err := h.objectclient.DeleteFile(r.Context(), h.cfg.BucketName, doc.S3Key); err != nil {
		slog.Warn("s3 delete failed", "key", doc.S3Key, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireDocument loads the {document_id} route param and verifies it
// belongs to the given project.
func (h *DocumentHandler) requireDocument(w http.ResponseWriter, r *http.Request, projectID string) (*models.Document, bool) {
	docID := chi.URLParam(r, "document_id")
	doc, err := h.dbclient.GetDocumentByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if doc == nil || doc.ProjectID != projectID {
		http.Error(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

func objectKey(projectID, docID, fileName string) string {
	return fmt.Sprintf("projects/%s/documents/%d_%s%s",
		projectID, time.Now().Unix(), docID[:8], filepath.Ext(fileName))
}
