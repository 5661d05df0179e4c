package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"tabletalk/internal/nlsql"
)

// TestInitialModel tests the initial model creation
func TestInitialModel(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)

	if m.currentView != askView {
		t.Errorf("Expected initial view to be askView, got %v", m.currentView)
	}

	if !m.questionInput.Focused() {
		t.Error("Expected question input to be focused initially")
	}

	if len(m.list.Items()) != 2 {
		t.Errorf("Expected 2 table items, got %d", len(m.list.Items()))
	}

	if m.asking {
		t.Error("Expected asking to be false initially")
	}

	if m.err != nil {
		t.Errorf("Expected no error initially, got %v", m.err)
	}
}

// TestAskViewFocusToggle tests Tab switching focus between input and list
func TestAskViewFocusToggle(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24

	initialFocused := m.questionInput.Focused()

	newModel, _ := m.handleAskViewKeys(tea.KeyMsg{Type: tea.KeyTab})
	m = newModel.(model)

	if m.questionInput.Focused() == initialFocused {
		t.Error("Expected focus to change on Tab")
	}
}

// TestAskWithoutEngine tests that asking without an API key reports an error
// instead of crashing.
func TestAskWithoutEngine(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.questionInput.SetValue("how many products are there")

	newModel, cmd := m.handleAskViewKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)

	if cmd != nil {
		t.Error("Expected no command without an engine")
	}
	if m.err == nil {
		t.Fatal("Expected error when engine is nil")
	}
	if m.currentView != askView {
		t.Error("Expected to stay on ask view")
	}
}

// TestAnswerMessageHandling tests handling of a successful answer
func TestAnswerMessageHandling(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.viewportReady = true
	m.asking = true

	msg := answerMsg{
		question: "top products",
		sql:      `SELECT "product_name", "units_sold" FROM "products"`,
		rows: []nlsql.Row{
			{"product_name": "Widget", "units_sold": int64(120)},
			{"product_name": "Gadget", "units_sold": int64(75)},
		},
	}

	newModel, _ := m.Update(msg)
	m = newModel.(model)

	if m.asking {
		t.Error("Expected asking to be false after answer")
	}
	if m.currentView != resultView {
		t.Errorf("Expected view to be resultView, got %v", m.currentView)
	}
	if len(m.rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(m.rows))
	}
	if len(m.columns) != 2 || m.columns[0] != "product_name" {
		t.Errorf("Expected sorted columns starting with product_name, got %v", m.columns)
	}
	if m.err != nil {
		t.Errorf("Expected no error, got %v", m.err)
	}
}

// TestAnswerMessageExhaustion tests that attempt exhaustion shows the last
// error as result data, not as a fault.
func TestAnswerMessageExhaustion(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.viewportReady = true
	m.asking = true

	msg := answerMsg{
		question: "broken question",
		sql:      `SELECT "nope" FROM "products"`,
		execErr: &nlsql.ExecError{
			Query:    `SELECT "nope" FROM "products"`,
			Attempts: 3,
			Message:  "no such column: nope",
		},
	}

	newModel, _ := m.Update(msg)
	m = newModel.(model)

	if m.currentView != resultView {
		t.Errorf("Expected view to be resultView, got %v", m.currentView)
	}
	if m.err != nil {
		t.Errorf("Expected no model error for exhaustion, got %v", m.err)
	}
	if m.execFailure != "no such column: nope" {
		t.Errorf("Expected exec failure message, got %q", m.execFailure)
	}
	if m.execAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", m.execAttempts)
	}

	content := m.resultViewContent()
	if !strings.Contains(content, "no such column: nope") {
		t.Error("Expected result content to show the last error")
	}
	if !strings.Contains(content, "3 attempt") {
		t.Error("Expected result content to show the attempt count")
	}
}

// TestWindowSizeHandling tests window size message handling
func TestWindowSizeHandling(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = newModel.(model)

	if m.width != 100 {
		t.Errorf("Expected width 100, got %d", m.width)
	}
	if m.height != 30 {
		t.Errorf("Expected height 30, got %d", m.height)
	}
	if !m.viewportReady {
		t.Error("Expected viewport to be ready after window size message")
	}
}

// TestResultViewBackToAsk tests returning from result view to ask view
func TestResultViewBackToAsk(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.currentView = resultView
	m.sqlQuery = `SELECT 1`

	newModel, _ := m.handleResultViewKeys(tea.KeyMsg{Type: tea.KeyEsc})
	m = newModel.(model)

	if m.currentView != askView {
		t.Errorf("Expected view to be askView, got %v", m.currentView)
	}
}

// TestSavePromptTransition tests transitioning to save prompt view
func TestSavePromptTransition(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.currentView = resultView
	m.question = "top products"
	m.sqlQuery = `SELECT 1`

	newModel, _ := m.handleResultViewKeys(tea.KeyMsg{Type: tea.KeyCtrlW})
	m = newModel.(model)

	if m.currentView != savePromptView {
		t.Errorf("Expected view to be savePromptView, got %v", m.currentView)
	}
	if !m.saveInput.Focused() {
		t.Error("Expected save input to be focused")
	}
	if !strings.Contains(m.saveInput.Value(), ".json") {
		t.Error("Expected default filename to have .json extension")
	}
}

// TestSavePromptCancel tests canceling the save prompt
func TestSavePromptCancel(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.currentView = savePromptView
	m.saveInput.SetValue("results.json")

	newModel, _ := m.handleSavePromptKeys(tea.KeyMsg{Type: tea.KeyEsc})
	m = newModel.(model)

	if m.currentView != resultView {
		t.Errorf("Expected view to be resultView, got %v", m.currentView)
	}
	if m.saveInput.Value() != "" {
		t.Error("Expected save input to be cleared")
	}
}

// TestAskViewRender tests ask view rendering
func TestAskViewRender(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24

	output := m.askViewRender()

	if !strings.Contains(output, "TableTalk") {
		t.Error("Expected output to contain 'TableTalk'")
	}
	if !strings.Contains(output, "Ask a question") {
		t.Error("Expected output to contain question placeholder text")
	}
	if !strings.Contains(output, "ANTHROPIC_API_KEY") {
		t.Error("Expected output to warn about missing API key")
	}
}

// TestResultViewContent tests result content generation
func TestResultViewContent(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.question = "top products"
	m.sqlQuery = `SELECT "product_name", "units_sold" FROM "products"`
	m.rows = []nlsql.Row{
		{"product_name": "Widget", "units_sold": int64(120)},
		{"product_name": "Gadget", "units_sold": int64(75)},
	}
	m.columns = resultColumns(m.rows)

	content := m.resultViewContent()

	if !strings.Contains(content, "top products") {
		t.Error("Expected content to contain the question")
	}
	if !strings.Contains(content, "SELECT") {
		t.Error("Expected content to contain the SQL")
	}
	if !strings.Contains(content, "2 rows") {
		t.Error("Expected content to contain the row count")
	}
	if !strings.Contains(content, "Widget") {
		t.Error("Expected content to contain result values")
	}
}

// TestResultViewContentEmpty tests the empty result rendering
func TestResultViewContentEmpty(t *testing.T) {
	store, cleanup := SetupTestStore(t)
	defer cleanup()

	m := initialModel(store, nil, 3)
	m.width = 80
	m.height = 24
	m.question = "anything"
	m.sqlQuery = `SELECT 1 WHERE false`

	content := m.resultViewContent()

	if !strings.Contains(content, "no rows") {
		t.Error("Expected content to report zero rows")
	}
}

// TestResultColumns tests stable column derivation from map rows
func TestResultColumns(t *testing.T) {
	rows := []nlsql.Row{
		{"zeta": 1, "alpha": 2, "mid": 3},
	}

	columns := resultColumns(rows)
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	if columns[0] != "alpha" || columns[1] != "mid" || columns[2] != "zeta" {
		t.Errorf("expected sorted columns, got %v", columns)
	}

	if resultColumns(nil) != nil {
		t.Error("expected nil columns for empty rows")
	}
}

// TestMarkdownTable tests markdown table construction
func TestMarkdownTable(t *testing.T) {
	columns := []string{"name", "value"}
	rows := []nlsql.Row{
		{"name": "a|b", "value": int64(1)},
		{"name": "line\nbreak", "value": int64(2)},
	}

	table := markdownTable(columns, rows)

	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header, separator, 2 rows), got %d", len(lines))
	}
	if lines[0] != "| name | value |" {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "| --- | --- |" {
		t.Errorf("unexpected separator line: %q", lines[1])
	}
	if !strings.Contains(lines[2], `a\|b`) {
		t.Errorf("expected pipe to be escaped, got %q", lines[2])
	}
	if strings.Contains(lines[3], "\n") {
		t.Error("expected newlines to be flattened")
	}
}

// TestNumericChart tests chart generation for numeric results
func TestNumericChart(t *testing.T) {
	columns := []string{"city", "total"}
	rows := []nlsql.Row{
		{"city": "Denver", "total": int64(3)},
		{"city": "Austin", "total": int64(2)},
	}

	chart := numericChart(columns, rows)
	if chart == "" {
		t.Fatal("expected a chart for numeric results")
	}
	if !strings.Contains(chart, "Denver") {
		t.Error("expected chart to contain labels")
	}
	if !strings.Contains(chart, "total") {
		t.Error("expected chart to name the numeric column")
	}

	textOnly := numericChart([]string{"a"}, []nlsql.Row{{"a": "x"}})
	if textOnly != "" {
		t.Error("expected no chart for non-numeric results")
	}
}

// TestTableItemInterface tests the tableItem list.Item implementation
func TestTableItemInterface(t *testing.T) {
	meta := &TableMeta{
		Name:     "products",
		RowCount: 3,
		Columns: []ColumnMeta{
			{Name: "product_name", Type: "VARCHAR"},
			{Name: "units_sold", Type: "INTEGER"},
		},
	}

	item := tableItem{meta: meta}

	if item.Title() != "products" {
		t.Errorf("Expected title 'products', got '%s'", item.Title())
	}

	desc := item.Description()
	if !strings.Contains(desc, "3 rows") {
		t.Error("Expected description to contain row count")
	}
	if !strings.Contains(desc, "2 columns") {
		t.Error("Expected description to contain column count")
	}
	if !strings.Contains(desc, "product_name") {
		t.Error("Expected description to contain column names")
	}

	if item.FilterValue() != "products" {
		t.Errorf("Expected filter value 'products', got '%s'", item.FilterValue())
	}
}
