package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"applicationservice/src/services/applications"
)

// Server representa o servidor HTTP da API
type Server struct {
	logger             *slog.Logger
	server             *http.Server
	mux                *http.ServeMux
	port               int
	applicationService *applications.ApplicationService
}

// NewServer cria uma nova instância do servidor
func NewServer(
	logger *slog.Logger,
	port int,
	applicationService *applications.ApplicationService,
) *Server {
	server := &Server{
		mux:                http.NewServeMux(),
		port:               port,
		logger:             logger,
		applicationService: applicationService,
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Rotas de Leitura
	server.mux.HandleFunc("GET /v1/applications", server.ListApplications)
	server.mux.HandleFunc("GET /v1/applications/{id}", server.GetApplication)
	server.mux.HandleFunc("GET /v1/applications/{id}/history", server.GetHistory)

	// Rotas de Escritas
	server.mux.HandleFunc("POST /v1/applications", server.CreateApplication)
	server.mux.HandleFunc("DELETE /v1/applications/{id}", server.DeleteApplication)
	server.mux.HandleFunc("POST /v1/applications/{id}/status", server.ChangeStatus)

	// Referências para outros serviços
	server.mux.HandleFunc("PUT /v1/applications/{id}/tags/{tagId}", server.AttachTag)
	server.mux.HandleFunc("DELETE /v1/applications/{id}/tags/{tagId}", server.DetachTag)
	server.mux.HandleFunc("PUT /v1/applications/{id}/files/{fileId}", server.AttachFile)
	server.mux.HandleFunc("DELETE /v1/applications/{id}/files/{fileId}", server.DetachFile)

	return server
}

// Handler exposes the routes without a listener, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start inicia o servidor HTTP
func (s *Server) Start() error {
	s.logger.Info("Server started", "port", s.port)

	return s.server.ListenAndServe()
}

// Shutdown encerra o servidor HTTP de forma graciosa
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
