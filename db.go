package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	_ "github.com/duckdb/duckdb-go/v2"

	"tabletalk/internal/nlsql"
)

const sampleRowLimit = 5

// ColumnMeta is one typed column of a loaded table. Type is one of
// INTEGER, DOUBLE, TIMESTAMP, BOOLEAN, VARCHAR.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableMeta describes one loaded table: typed columns in declaration order
// plus a small sample of rows for grounding the SQL generator.
type TableMeta struct {
	Name       string       `json:"name"`
	Columns    []ColumnMeta `json:"columns"`
	RowCount   int64        `json:"row_count"`
	SampleRows []nlsql.Row  `json:"sample_rows"`
}

// Store is the DuckDB-backed data store and schema catalog. Tables are
// created from uploaded CSV files and queried with AI-generated SQL.
type Store struct {
	conn    *sql.DB
	dataDir string
	tables  map[string]*TableMeta
	order   []string // table creation order, for stable schema rendering
}

// NewStore opens (or creates) the DuckDB database under dataDir and loads
// metadata for any tables left over from earlier sessions.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "tabletalk.duckdb")
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open DuckDB database", "error", err, "db_path", dbPath)
		}
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	s := &Store{
		conn:    db,
		dataDir: dataDir,
		tables:  make(map[string]*TableMeta),
	}

	if err := s.loadExistingTables(); err != nil {
		db.Close()
		if logger != nil {
			logger.Error("Failed to load existing tables", "error", err, "db_path", dbPath)
		}
		return nil, fmt.Errorf("failed to load existing tables: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// loadExistingTables rebuilds catalog metadata for tables already present
// in the database file.
func (s *Store) loadExistingTables() error {
	rows, err := s.conn.Query("SHOW TABLES")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.refreshTableMeta(name); err != nil {
			return err
		}
	}

	if logger != nil && len(names) > 0 {
		logger.Info("Loaded existing tables", "count", len(names))
	}
	return nil
}

// refreshTableMeta re-reads column types, row count, and sample rows for a
// table and records them in the catalog.
func (s *Store) refreshTableMeta(name string) error {
	infoRows, err := s.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteLiteral(name)))
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", name, err)
	}
	defer infoRows.Close()

	var columns []ColumnMeta
	for infoRows.Next() {
		var (
			cid     int64
			colName string
			colType string
			notNull bool
			dflt    sql.NullString
			pk      bool
		)
		if err := infoRows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan column info for %s: %w", name, err)
		}
		columns = append(columns, ColumnMeta{Name: colName, Type: mapDuckDBType(colType)})
	}
	if err := infoRows.Err(); err != nil {
		return err
	}

	var rowCount int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(name))
	if err := s.conn.QueryRow(countQuery).Scan(&rowCount); err != nil {
		return fmt.Errorf("failed to count rows in %s: %w", name, err)
	}

	samples, err := s.ExecuteQuery(fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(name), sampleRowLimit))
	if err != nil {
		return fmt.Errorf("failed to sample rows from %s: %w", name, err)
	}

	if _, exists := s.tables[name]; !exists {
		s.order = append(s.order, name)
	}
	s.tables[name] = &TableMeta{
		Name:       name,
		Columns:    columns,
		RowCount:   rowCount,
		SampleRows: samples,
	}
	return nil
}

// LoadCSV loads a CSV file into a new table. Column names are cleaned to
// SQL-friendly identifiers, types are inferred by DuckDB's CSV sniffer and
// mapped onto the catalog's type set. An empty tableName derives the table
// name from the file stem; collisions get a numeric suffix.
func (s *Store) LoadCSV(path, tableName string) (*TableMeta, error) {
	if tableName == "" {
		base := filepath.Base(path)
		tableName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	tableName = s.uniqueTableName(cleanIdentifier(tableName))

	source := fmt.Sprintf("read_csv(%s)", quoteLiteral(path))

	// Sniff the header so cleaned column names can be aliased in.
	descRows, err := s.conn.Query(fmt.Sprintf("DESCRIBE SELECT * FROM %s", source))
	if err != nil {
		if logger != nil {
			logger.Error("CSV sniffing failed", "error", err, "path", path)
		}
		return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
	}

	var selects []string
	seen := make(map[string]int)
	for descRows.Next() {
		var colName, colType string
		var null, key, dflt, extra sql.NullString
		if err := descRows.Scan(&colName, &colType, &null, &key, &dflt, &extra); err != nil {
			descRows.Close()
			return nil, fmt.Errorf("failed to scan csv description: %w", err)
		}

		cleaned := cleanIdentifier(colName)
		// Column names must stay unique within the table.
		if n := seen[cleaned]; n > 0 {
			cleaned = fmt.Sprintf("%s_%d", cleaned, n)
		}
		seen[cleanIdentifier(colName)]++

		selects = append(selects, fmt.Sprintf("%s AS %s", quoteIdent(colName), quoteIdent(cleaned)))
	}
	if err := descRows.Err(); err != nil {
		descRows.Close()
		return nil, err
	}
	descRows.Close()

	if len(selects) == 0 {
		return nil, fmt.Errorf("csv file %s has no columns", path)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s",
		quoteIdent(tableName), strings.Join(selects, ", "), source)
	if _, err := s.conn.Exec(createSQL); err != nil {
		if logger != nil {
			logger.Error("Failed to create table from CSV", "error", err, "table", tableName, "path", path)
		}
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	if err := s.refreshTableMeta(tableName); err != nil {
		return nil, err
	}

	meta := s.tables[tableName]
	if logger != nil {
		logger.Info("Loaded CSV into table",
			"table", tableName,
			"path", path,
			"columns", len(meta.Columns),
			"rows", meta.RowCount)
	}
	return meta, nil
}

// LoadCSVFromURL downloads a CSV over HTTP into the uploads directory and
// loads it like a local file.
func (s *Store) LoadCSVFromURL(url, tableName string) (*TableMeta, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "tabletalk/1.0")

	resp, err := client.Do(req)
	if err != nil {
		if logger != nil {
			logger.Error("CSV download failed", "error", err, "url", url)
		}
		return nil, fmt.Errorf("failed to download csv: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if logger != nil {
			logger.Error("CSV download returned non-OK status", "status_code", resp.StatusCode, "url", url)
		}
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	uploadsDir := filepath.Join(s.dataDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}

	stem := filepath.Base(url)
	if stem == "" || stem == "." || stem == "/" {
		stem = "download.csv"
	}
	path := filepath.Join(uploadsDir, cleanFilename(stem))

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to save downloaded csv: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to close upload file: %w", err)
	}

	return s.LoadCSV(path, tableName)
}

// Tables returns catalog metadata in table creation order.
func (s *Store) Tables() []*TableMeta {
	out := make([]*TableMeta, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tables[name])
	}
	return out
}

// Table returns metadata for one table.
func (s *Store) Table(name string) (*TableMeta, bool) {
	meta, ok := s.tables[name]
	return meta, ok
}

// SchemaForLLM renders the schema of the named tables (all tables when none
// are named) in the exact textual shape the SQL generator is prompted with:
//
//	Table: <name>
//	Columns:
//	- <col> (<TYPE>)
//	Row 1: col=val, ...
//
// Tables are separated by blank lines. Up to 3 sample rows per table.
func (s *Store) SchemaForLLM(names ...string) (string, error) {
	if len(names) == 0 {
		names = s.order
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no tables loaded")
	}

	var blocks []string
	for _, name := range names {
		meta, ok := s.tables[name]
		if !ok {
			return "", fmt.Errorf("unknown table: %s", name)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Table: %s\nColumns:\n", meta.Name)
		for _, col := range meta.Columns {
			fmt.Fprintf(&b, "- %s (%s)\n", col.Name, col.Type)
		}

		samples := meta.SampleRows
		if len(samples) > 3 {
			samples = samples[:3]
		}
		for i, row := range samples {
			pairs := make([]string, 0, len(meta.Columns))
			for _, col := range meta.Columns {
				pairs = append(pairs, fmt.Sprintf("%s=%v", col.Name, row[col.Name]))
			}
			fmt.Fprintf(&b, "Row %d: %s\n", i+1, strings.Join(pairs, ", "))
		}

		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(blocks, "\n\n"), nil
}

// ExecuteQuery runs a SQL query and returns the rows as column-name maps.
// This is the executor capability handed to the correction loop: the error,
// when non-nil, is the raw DuckDB message the generator will see.
func (s *Store) ExecuteQuery(query string) ([]nlsql.Row, error) {
	_, rows, err := s.QueryColumns(query)
	return rows, err
}

// QueryColumns runs a SQL query and returns the ordered column names along
// with the rows. Display surfaces use this to keep column order; the
// correction loop only needs ExecuteQuery.
func (s *Store) QueryColumns(query string) ([]string, []nlsql.Row, error) {
	rows, err := s.conn.Query(query)
	if err != nil {
		if logger != nil {
			logger.Warn("Query execution failed", "error", err, "sql", query)
		}
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var out []nlsql.Row
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range columns {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		row := make(nlsql.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, out, nil
}

// uniqueTableName appends _N until the name is free in the catalog.
func (s *Store) uniqueTableName(base string) string {
	name := base
	for counter := 1; ; counter++ {
		if _, exists := s.tables[name]; !exists {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, counter)
	}
}

var identifierCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// cleanIdentifier makes a CSV header or file stem SQL-friendly: special
// characters become underscores, a leading non-letter gets a col_ prefix,
// and the result is lowercased.
func cleanIdentifier(name string) string {
	clean := identifierCleaner.ReplaceAllString(name, "_")
	if clean == "" {
		return "col_"
	}
	if !unicode.IsLetter(rune(clean[0])) {
		clean = "col_" + clean
	}
	return strings.ToLower(clean)
}

var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

func cleanFilename(name string) string {
	return filenameCleaner.ReplaceAllString(name, "_")
}

// mapDuckDBType collapses DuckDB's type zoo onto the catalog's enumerated
// set: INTEGER, DOUBLE, TIMESTAMP, BOOLEAN, VARCHAR.
func mapDuckDBType(duckType string) string {
	t := strings.ToUpper(duckType)
	switch {
	case strings.Contains(t, "TINYINT"), strings.Contains(t, "SMALLINT"),
		strings.Contains(t, "BIGINT"), strings.Contains(t, "HUGEINT"),
		strings.Contains(t, "INT"):
		return "INTEGER"
	case strings.Contains(t, "DOUBLE"), strings.Contains(t, "FLOAT"),
		strings.Contains(t, "REAL"), strings.Contains(t, "DECIMAL"),
		strings.Contains(t, "NUMERIC"):
		return "DOUBLE"
	case strings.Contains(t, "TIMESTAMP"), strings.Contains(t, "DATE"),
		strings.Contains(t, "TIME"):
		return "TIMESTAMP"
	case strings.Contains(t, "BOOL"):
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// normalizeValue converts driver-specific scan results to plain scalars.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// quoteIdent double-quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral single-quotes a SQL string literal, escaping embedded quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
