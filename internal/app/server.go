package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkwellhq/papyrus/internal/api/handlers"
	appMiddleware "github.com/inkwellhq/papyrus/internal/api/middlewares"
	"github.com/inkwellhq/papyrus/internal/config"
	"github.com/inkwellhq/papyrus/internal/core"
	"github.com/inkwellhq/papyrus/internal/core/ingestion_engine"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	obj core.ObjectClient,
	ing *ingestion_engine.DocumentIngestor,
	pipeCfg *ingestion_engine.PipelineConfig,
) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JwtSecret)
	projectHandler := handlers.NewProjectHandler(db)
	docHandler := handlers.NewDocumentHandler(db, obj, ing, cfg, pipeCfg)
	chatHandler := handlers.NewChatHandler(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.NewJWT(cfg.JwtSecret))

			protected.Route("/projects", func(pr chi.Router) {
				pr.Post("/", projectHandler.CreateProject)
				pr.Get("/", projectHandler.ListProjects)

				pr.Route("/{project_id}", func(p chi.Router) {
					p.Get("/", projectHandler.GetProject)
					p.Delete("/", projectHandler.DeleteProject)

					p.Route("/documents", func(d chi.Router) {
						d.Get("/", docHandler.GetDocuments)
						d.Post("/upload", docHandler.UploadDocument)
						d.Post("/upload-url", docHandler.CreateUploadURL)

						d.Route("/{document_id}", func(dd chi.Router) {
							dd.Post("/confirm", docHandler.ConfirmUpload)
							dd.Get("/status", docHandler.GetDocumentStatus)
							dd.Get("/chunks", docHandler.GetDocumentChunks)
							dd.Delete("/", docHandler.DeleteDocument)
						})
					})

					p.Route("/chats", func(c chi.Router) {
						c.Post("/", chatHandler.CreateSession)
						c.Get("/", chatHandler.ListSessions)
					})
				})
			})

			protected.Route("/chats/{session_id}", func(c chi.Router) {
				c.Get("/", chatHandler.GetSession)
				c.Delete("/", chatHandler.DeleteSession)
				c.Get("/messages", chatHandler.ListMessages)
				c.Post("/messages", chatHandler.PostMessage)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
