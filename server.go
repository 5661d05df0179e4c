package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tabletalk/internal/nlsql"
)

// ServerConfig holds configuration for the web server
type ServerConfig struct {
	Port        int
	Store       *Store
	Engine      *nlsql.Engine // nil when ANTHROPIC_API_KEY is not set
	MaxAttempts int
	DataDir     string
}

// newRouter builds the chi router with middleware and API routes
func newRouter(config ServerConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	apiHandler := &APIHandler{
		Store:       config.Store,
		Engine:      config.Engine,
		MaxAttempts: config.MaxAttempts,
		DataDir:     config.DataDir,
	}
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", apiHandler.Upload)
		r.Get("/tables", apiHandler.ListTables)
		r.Get("/tables/{name}", apiHandler.GetTable)
		r.Post("/query", apiHandler.Query)
		r.Post("/ask", apiHandler.Ask)
	})

	return r
}

// StartServer initializes and starts the HTTP server
func StartServer(config ServerConfig) error {
	r := newRouter(config)

	addr := fmt.Sprintf(":%d", config.Port)
	log.Printf("Starting server on http://localhost%s", addr)
	return http.ListenAndServe(addr, r)
}
