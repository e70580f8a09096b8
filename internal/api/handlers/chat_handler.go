package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/inkwellhq/papyrus/internal/api/middlewares"
	"github.com/inkwellhq/papyrus/internal/core"
	"github.com/inkwellhq/papyrus/internal/models"
)

// chatTitleRunes is how much of the first message becomes the session title.
const chatTitleRunes = 30

type ChatHandler struct {
	dbclient core.DbClient
}

func NewChatHandler(dbclient core.DbClient) *ChatHandler {
	return &ChatHandler{dbclient: dbclient}
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid body", 400)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Chat"
	}

	now := time.Now()
	session := &models.ChatSession{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.dbclient.CreateChatSession(r.Context(), session); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	sessions, err := h.dbclient.ListChatSessionsByProject(r.Context(), project.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.dbclient.DeleteChatSession(r.Context(), session.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type postMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PostMessage appends a message to a session. The first user message also
// names the session after its opening words.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", 400)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", 400)
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "assistant" {
		http.Error(w, "role must be user or assistant", 400)
		return
	}

	if role == "user" {
		count, err := h.dbclient.CountChatMessages(r.Context(), session.ID)
		if err == nil && count == 0 {
			if err := h.dbclient.UpdateChatSessionTitle(r.Context(), session.ID, deriveTitle(req.Content)); err != nil {
				slog.Warn("session title update failed", "session_id", session.ID, "error", err)
			}
		}
	}

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      role,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}

	if err := h.dbclient.CreateChatMessage(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	messages, err := h.dbclient.ListChatMessagesBySession(r.Context(), session.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// requireSession loads the {session_id} route param and walks up to the
// owning project to verify access.
func (h *ChatHandler) requireSession(w http.ResponseWriter, r *http.Request) (*models.ChatSession, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil, false
	}

	sessionID := chi.URLParam(r, "session_id")
	session, err := h.dbclient.GetChatSessionByID(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if session == nil {
		http.Error(w, "chat session not found", http.StatusNotFound)
		return nil, false
	}

	project, err := h.dbclient.GetProjectByID(r.Context(), session.ProjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if project == nil || project.OwnerID != userID {
		http.Error(w, "chat session not found", http.StatusNotFound)
		return nil, false
	}

	return session, true
}

func deriveTitle(content string) string {
	t := strings.TrimSpace(content)
	if r := []rune(t); len(r) > chatTitleRunes {
		return string(r[:chatTitleRunes]) + "..."
	}
	return t
}
