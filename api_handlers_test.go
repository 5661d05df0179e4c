package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tabletalk/internal/nlsql"
)

// setupTestRouter builds a router over a fixture store. The generator, when
// non-nil, backs the ask endpoint; a nil generator leaves the engine unset.
func setupTestRouter(t *testing.T, gen nlsql.TextGenerator) (http.Handler, *Store, func()) {
	t.Helper()

	store, cleanup := SetupTestStore(t)

	var engine *nlsql.Engine
	if gen != nil {
		var err error
		engine, err = nlsql.NewEngine(nlsql.WithGenerator(gen))
		if err != nil {
			cleanup()
			t.Fatalf("failed to create engine: %v", err)
		}
	}

	router := newRouter(ServerConfig{
		Port:        0,
		Store:       store,
		Engine:      engine,
		MaxAttempts: 3,
		DataDir:     store.dataDir,
	})

	return router, store, cleanup
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return out
}

// TestListTablesEndpoint tests GET /api/tables
func TestListTablesEndpoint(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "GET", "/api/tables", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	tables, ok := body["tables"].([]interface{})
	if !ok {
		t.Fatalf("expected tables array, got %T", body["tables"])
	}
	if len(tables) != 2 {
		t.Errorf("expected 2 tables, got %d", len(tables))
	}
	if !strings.Contains(rec.Body.String(), "products") {
		t.Error("expected products table in response")
	}
}

// TestGetTableEndpoint tests GET /api/tables/{name}
func TestGetTableEndpoint(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "GET", "/api/tables/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "product_name") {
		t.Error("expected column metadata in response")
	}
}

// TestGetTableNotFound tests the 404 for an unknown table
func TestGetTableNotFound(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "GET", "/api/tables/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// TestQueryEndpoint tests POST /api/query
func TestQueryEndpoint(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/query", map[string]string{
		"sql": `SELECT "product_name" FROM "products" ORDER BY "units_sold" DESC`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["count"].(float64) != 3 {
		t.Errorf("expected count 3, got %v", body["count"])
	}
	columns := body["columns"].([]interface{})
	if len(columns) != 1 || columns[0] != "product_name" {
		t.Errorf("expected [product_name], got %v", columns)
	}
}

// TestQueryEndpointMissingSQL tests the 400 for a missing sql field
func TestQueryEndpointMissingSQL(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/query", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// TestQueryEndpointBadSQL tests that engine errors map to 422
func TestQueryEndpointBadSQL(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/query", map[string]string{
		"sql": `SELECT "nope" FROM "products"`,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestUploadEndpoint tests POST /api/upload with a multipart CSV
func TestUploadEndpoint(t *testing.T) {
	router, store, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "uploaded.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(productsCSV)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.WriteField("table", "uploaded"); err != nil {
		t.Fatalf("failed to write table field: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	meta, ok := store.Table("uploaded")
	if !ok {
		t.Fatal("expected uploaded table to exist")
	}
	if meta.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", meta.RowCount)
	}
}

// TestUploadEndpointMissingFile tests the 400 for a missing file field
func TestUploadEndpointMissingFile(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("table", "nothing")
	writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// TestAskEndpoint tests the full question-to-rows path with a scripted
// generator.
func TestAskEndpoint(t *testing.T) {
	gen := &ScriptedGenerator{
		Responses: []string{"```sql\nSELECT \"product_name\" FROM \"products\"\n```"},
	}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "what products are there",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["sql"] != `SELECT "product_name" FROM "products"` {
		t.Errorf("expected fenced response to be sanitized, got %v", body["sql"])
	}
	if body["count"].(float64) != 3 {
		t.Errorf("expected count 3, got %v", body["count"])
	}
	if _, hasErr := body["error"]; hasErr {
		t.Errorf("expected no error field, got %v", body["error"])
	}

	if len(gen.Prompts) != 1 {
		t.Fatalf("expected 1 generator call, got %d", len(gen.Prompts))
	}
	if !strings.Contains(gen.Prompts[0], "Table: products") {
		t.Error("expected the prompt to carry the schema rendering")
	}
	if !strings.Contains(gen.Prompts[0], "what products are there") {
		t.Error("expected the prompt to carry the question")
	}
}

// TestAskEndpointCorrection tests that a failing query is repaired and the
// repaired query is reported.
func TestAskEndpointCorrection(t *testing.T) {
	gen := &ScriptedGenerator{
		Responses: []string{
			`SELECT "nope" FROM "products"`,
			`SELECT "product_name" FROM "products"`,
		},
	}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "what products are there",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["sql"] != `SELECT "product_name" FROM "products"` {
		t.Errorf("expected corrected query in response, got %v", body["sql"])
	}
	if body["count"].(float64) != 3 {
		t.Errorf("expected count 3, got %v", body["count"])
	}

	// One generation call plus one correction call.
	if len(gen.Prompts) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(gen.Prompts))
	}
	if !strings.Contains(gen.Prompts[1], `SELECT "nope" FROM "products"`) {
		t.Error("expected the correction prompt to embed the failing query")
	}
}

// TestAskEndpointExhaustion tests that attempt exhaustion is reported as
// data with HTTP 200.
func TestAskEndpointExhaustion(t *testing.T) {
	gen := &ScriptedGenerator{
		Responses: []string{
			`SELECT "nope" FROM "products"`,
			`SELECT "still_nope" FROM "products"`,
		},
	}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question":     "broken",
		"max_attempts": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["error"] == nil || body["error"] == "" {
		t.Fatal("expected error field for exhausted attempts")
	}
	if body["attempts"].(float64) != 2 {
		t.Errorf("expected 2 attempts, got %v", body["attempts"])
	}
	if body["sql"] != `SELECT "still_nope" FROM "products"` {
		t.Errorf("expected last query in response, got %v", body["sql"])
	}
	if _, hasRows := body["rows"]; hasRows {
		t.Error("expected no rows field for exhausted attempts")
	}
}

// TestAskEndpointGeneratorFailure tests that generation failures map to 502
func TestAskEndpointGeneratorFailure(t *testing.T) {
	gen := &ScriptedGenerator{Err: fmt.Errorf("api unavailable")}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "anything",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestAskEndpointMissingQuestion tests the 400 for an empty question
func TestAskEndpointMissingQuestion(t *testing.T) {
	gen := &ScriptedGenerator{Responses: []string{"SELECT 1"}}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "   ",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// TestAskEndpointNoEngine tests the 503 when no API key is configured
func TestAskEndpointNoEngine(t *testing.T) {
	router, _, cleanup := setupTestRouter(t, nil)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "anything",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// TestAskEndpointInsights tests that insights ride along when requested
func TestAskEndpointInsights(t *testing.T) {
	gen := &ScriptedGenerator{
		Responses: []string{
			`SELECT "product_name" FROM "products"`,
			"Widgets dominate the catalog.",
		},
	}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "what products are there",
		"insights": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["insights"] != "Widgets dominate the catalog." {
		t.Errorf("expected insights text, got %v", body["insights"])
	}
}

// TestAskEndpointTableSubset tests scoping the schema to named tables
func TestAskEndpointTableSubset(t *testing.T) {
	gen := &ScriptedGenerator{
		Responses: []string{`SELECT COUNT(*) AS n FROM "people"`},
	}
	router, _, cleanup := setupTestRouter(t, gen)
	defer cleanup()

	rec := doJSON(t, router, "POST", "/api/ask", map[string]interface{}{
		"question": "how many people",
		"tables":   []string{"people"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if !strings.Contains(gen.Prompts[0], "Table: people") {
		t.Error("expected people schema in prompt")
	}
	if strings.Contains(gen.Prompts[0], "Table: products") {
		t.Error("expected products schema to be excluded from prompt")
	}
}
