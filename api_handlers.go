package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"tabletalk/internal/nlsql"
)

// APIHandler handles JSON API requests
type APIHandler struct {
	Store       *Store
	Engine      *nlsql.Engine
	MaxAttempts int
	DataDir     string
}

// Upload handles multipart CSV uploads and loads them into a new table.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid multipart form",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing file field",
		})
		return
	}
	defer file.Close()

	uploadsDir := filepath.Join(h.DataDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		log.Printf("Upload error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to save upload",
		})
		return
	}

	path := filepath.Join(uploadsDir, cleanFilename(filepath.Base(header.Filename)))
	out, err := os.Create(path)
	if err != nil {
		log.Printf("Upload error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to save upload",
		})
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		log.Printf("Upload error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to save upload",
		})
		return
	}
	if err := out.Close(); err != nil {
		log.Printf("Upload error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to save upload",
		})
		return
	}

	meta, err := h.Store.LoadCSV(path, r.FormValue("table"))
	if err != nil {
		log.Printf("CSV load error: %v", err)
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "Failed to load CSV: " + err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"table": meta,
	})
}

// ListTables returns catalog metadata for all loaded tables.
func (h *APIHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tables": h.Store.Tables(),
	})
}

// GetTable returns catalog metadata for one table.
func (h *APIHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	meta, ok := h.Store.Table(name)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{
			"error": "Table not found",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"table": meta,
	})
}

type queryRequest struct {
	SQL string `json:"sql"`
}

// Query executes raw SQL and returns the rows.
func (h *APIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SQL) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing sql field",
		})
		return
	}

	columns, rows, err := h.Store.QueryColumns(req.SQL)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"columns": columns,
		"rows":    rows,
		"count":   len(rows),
	})
}

type askRequest struct {
	Question    string   `json:"question"`
	Tables      []string `json:"tables,omitempty"`
	Insights    bool     `json:"insights,omitempty"`
	MaxAttempts int      `json:"max_attempts,omitempty"`
}

// Ask translates a question to SQL, runs the correction loop, and returns
// the final query with either rows or the last execution error. Exhaustion
// is reported in the body, not as an HTTP fault.
func (h *APIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "Natural language queries not available: ANTHROPIC_API_KEY not set",
		})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing question field",
		})
		return
	}

	schemaContext, err := h.Store.SchemaForLLM(req.Tables...)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	ctx := r.Context()

	sqlQuery, err := h.Engine.GenerateSQL(ctx, req.Question, schemaContext)
	if err != nil {
		log.Printf("SQL generation error: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "SQL generation failed: " + err.Error(),
		})
		return
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = h.MaxAttempts
	}

	finalQuery, rows, err := h.Engine.ExecuteWithCorrection(ctx, sqlQuery, h.Store.ExecuteQuery, maxAttempts)
	if err != nil {
		var execErr *nlsql.ExecError
		if !errors.As(err, &execErr) {
			log.Printf("SQL correction error: %v", err)
			respondJSON(w, http.StatusBadGateway, map[string]string{
				"error": "SQL generation failed: " + err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"question": req.Question,
			"sql":      finalQuery,
			"error":    execErr.Message,
			"attempts": execErr.Attempts,
		})
		return
	}

	response := map[string]interface{}{
		"question": req.Question,
		"sql":      finalQuery,
		"rows":     rows,
		"count":    len(rows),
	}

	if req.Insights {
		insights, err := h.Engine.Summarize(ctx, rows, req.Question)
		if err != nil {
			log.Printf("Insight generation error: %v", err)
			response["insights_error"] = err.Error()
		} else {
			response["insights"] = insights
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}
