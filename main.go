package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"tabletalk/cmd"
	"tabletalk/internal/nlsql"
)

const (
	maxDisplayRows = 100
	maxChartRows   = 10
)

var logger *slog.Logger

// setupLogger creates and configures the application logger
func setupLogger(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	logPath := filepath.Join(dataDir, "err.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})

	logger = slog.New(handler)
	logger.Info("Application started", "version", "1.0", "data_dir", dataDir)

	return nil
}

// renderMarkdown renders markdown content with glamour for display
func renderMarkdown(content string, width int) (string, error) {
	const glamourGutter = 2
	const borderWidth = 4

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

type view int

const (
	askView view = iota
	resultView
	savePromptView
)

type model struct {
	store         *Store
	engine        *nlsql.Engine
	maxAttempts   int
	currentView   view
	questionInput textinput.Model
	saveInput     textinput.Model
	viewport      viewport.Model
	list          list.Model
	question      string
	sqlQuery      string
	columns       []string
	rows          []nlsql.Row
	execFailure   string
	execAttempts  int
	insights      string
	width         int
	height        int
	err           error
	asking        bool
	summarizing   bool
	saveSuccess   string
	copied        bool
	viewportReady bool
}

type tableItem struct {
	meta *TableMeta
}

func (i tableItem) Title() string {
	return i.meta.Name
}

func (i tableItem) Description() string {
	names := make([]string, 0, len(i.meta.Columns))
	for _, col := range i.meta.Columns {
		names = append(names, col.Name)
	}
	cols := strings.Join(names, ", ")
	if len(cols) > 60 {
		cols = cols[:57] + "..."
	}
	return fmt.Sprintf("%d rows | %d columns | %s", i.meta.RowCount, len(i.meta.Columns), cols)
}

func (i tableItem) FilterValue() string {
	return i.meta.Name
}

type answerMsg struct {
	question string
	sql      string
	rows     []nlsql.Row
	execErr  *nlsql.ExecError
	err      error
}

type insightsMsg struct {
	text string
	err  error
}

type saveMsg struct {
	filename string
	err      error
}

func askQuestion(store *Store, engine *nlsql.Engine, question string, maxAttempts int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		schema, err := store.SchemaForLLM()
		if err != nil {
			return answerMsg{question: question, err: err}
		}

		sqlQuery, err := engine.GenerateSQL(ctx, question, schema)
		if err != nil {
			return answerMsg{question: question, err: err}
		}

		finalQuery, rows, err := engine.ExecuteWithCorrection(ctx, sqlQuery, store.ExecuteQuery, maxAttempts)
		if err != nil {
			var execErr *nlsql.ExecError
			if errors.As(err, &execErr) {
				return answerMsg{question: question, sql: finalQuery, execErr: execErr}
			}
			return answerMsg{question: question, sql: finalQuery, err: err}
		}

		return answerMsg{question: question, sql: finalQuery, rows: rows}
	}
}

func summarizeRows(engine *nlsql.Engine, rows []nlsql.Row, question string) tea.Cmd {
	return func() tea.Msg {
		text, err := engine.Summarize(context.Background(), rows, question)
		return insightsMsg{text: text, err: err}
	}
}

func saveResults(question, sqlQuery string, rows []nlsql.Row, insights, filename string) tea.Cmd {
	return func() tea.Msg {
		data := map[string]interface{}{
			"question": question,
			"sql":      sqlQuery,
			"rows":     rows,
		}
		if insights != "" {
			data["insights"] = insights
		}

		jsonData, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return saveMsg{err: fmt.Errorf("failed to marshal data: %w", err)}
		}

		if err := os.WriteFile(filename, jsonData, 0644); err != nil {
			return saveMsg{err: fmt.Errorf("failed to write file: %w", err)}
		}

		return saveMsg{filename: filename}
	}
}

// resultColumns derives a stable column order for map-shaped rows.
func resultColumns(rows []nlsql.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// markdownTable renders rows as a markdown table for glamour.
func markdownTable(columns []string, rows []nlsql.Row) string {
	if len(columns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")

	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	display := rows
	if len(display) > maxDisplayRows {
		display = display[:maxDisplayRows]
	}
	for _, row := range display {
		cells := make([]string, len(columns))
		for i, col := range columns {
			val := fmt.Sprintf("%v", row[col])
			val = strings.ReplaceAll(val, "|", "\\|")
			val = strings.ReplaceAll(val, "\n", " ")
			cells[i] = val
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return b.String()
}

// numericChart builds a bar chart for the first numeric column of the
// result, using the first non-numeric column as labels when present.
func numericChart(columns []string, rows []nlsql.Row) string {
	if len(rows) == 0 {
		return ""
	}

	numericCol := ""
	labelCol := ""
	for _, col := range columns {
		if _, ok := toFloat(rows[0][col]); ok {
			if numericCol == "" {
				numericCol = col
			}
		} else if labelCol == "" {
			labelCol = col
		}
	}
	if numericCol == "" {
		return ""
	}

	display := rows
	if len(display) > maxChartRows {
		display = display[:maxChartRows]
	}

	maxVal := 0.0
	values := make([]float64, 0, len(display))
	labels := make([]string, 0, len(display))
	for i, row := range display {
		v, ok := toFloat(row[numericCol])
		if !ok {
			return ""
		}
		values = append(values, v)
		if math.Abs(v) > maxVal {
			maxVal = math.Abs(v)
		}

		label := fmt.Sprintf("%d", i+1)
		if labelCol != "" {
			label = fmt.Sprintf("%v", row[labelCol])
		}
		if len(label) > 15 {
			label = label[:12] + "..."
		}
		labels = append(labels, label)
	}

	var b strings.Builder
	chartTitle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render(fmt.Sprintf("%s by %s", numericCol, labelColOr(labelCol, "row")))
	b.WriteString(chartTitle)
	b.WriteString("\n")

	for i, v := range values {
		b.WriteString(BarChart(fmt.Sprintf("%-15s", labels[i]), v, maxVal, 40, lipgloss.Color("33")))
		b.WriteString("\n")
	}
	b.WriteString("Trend: " + Sparkline(values))
	b.WriteString("\n")

	return b.String()
}

func labelColOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func initialModel(store *Store, engine *nlsql.Engine, maxAttempts int) model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about your data..."
	ti.Focus()
	ti.CharLimit = 300
	ti.Width = 60

	si := textinput.New()
	si.Placeholder = "Enter filename (e.g., results.json)"
	si.CharLimit = 200
	si.Width = 60

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Loaded Tables"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		Padding(0, 1)

	items := []list.Item{}
	for _, meta := range store.Tables() {
		items = append(items, tableItem{meta: meta})
	}
	l.SetItems(items)

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return model{
		store:         store,
		engine:        engine,
		maxAttempts:   maxAttempts,
		currentView:   askView,
		questionInput: ti,
		saveInput:     si,
		viewport:      vp,
		list:          l,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-10)

		// Reserve lines for status messages and help text below the viewport
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.viewportReady = true

		if m.currentView == resultView {
			m.updateResultViewport()
		}

		return m, nil

	case tea.KeyMsg:
		if m.currentView == resultView {
			return m.handleResultViewKeys(msg)
		} else if m.currentView == savePromptView {
			return m.handleSavePromptKeys(msg)
		}
		return m.handleAskViewKeys(msg)

	case tea.MouseMsg:
		if m.currentView == resultView {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.asking = false
		m.question = msg.question
		m.sqlQuery = msg.sql
		m.rows = nil
		m.columns = nil
		m.execFailure = ""
		m.execAttempts = 0
		m.insights = ""
		m.copied = false
		m.saveSuccess = ""

		if msg.err != nil {
			m.err = msg.err
			if logger != nil {
				logger.Error("Question failed", "error", msg.err, "question", msg.question)
			}
			return m, nil
		}

		m.err = nil
		if msg.execErr != nil {
			m.execFailure = msg.execErr.Message
			m.execAttempts = msg.execErr.Attempts
			if logger != nil {
				logger.Warn("Query attempts exhausted",
					"question", msg.question,
					"sql", msg.sql,
					"attempts", msg.execErr.Attempts,
					"last_error", msg.execErr.Message)
			}
		} else {
			m.rows = msg.rows
			m.columns = resultColumns(msg.rows)
			if logger != nil {
				logger.Info("Question answered", "question", msg.question, "rows", len(msg.rows))
			}
		}

		m.currentView = resultView
		m.viewport.GotoTop()
		m.updateResultViewport()
		return m, nil

	case insightsMsg:
		m.summarizing = false
		if msg.err != nil {
			m.err = fmt.Errorf("insight generation failed: %w", msg.err)
			if logger != nil {
				logger.Error("Insight generation failed", "error", msg.err, "question", m.question)
			}
			return m, nil
		}
		m.insights = msg.text
		m.err = nil
		if m.currentView == resultView {
			m.updateResultViewport()
		}
		return m, nil

	case saveMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("save failed: %w", msg.err)
			m.currentView = resultView
			return m, nil
		}
		m.saveSuccess = fmt.Sprintf("Saved to: %s", msg.filename)
		m.saveInput.SetValue("")
		m.currentView = resultView
		if logger != nil {
			logger.Info("Results saved", "filename", msg.filename, "question", m.question)
		}
		return m, nil
	}

	if m.currentView == askView {
		var cmd tea.Cmd
		m.questionInput, cmd = m.questionInput.Update(msg)
		cmds = append(cmds, cmd)

		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleAskViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		if m.questionInput.Focused() {
			question := strings.TrimSpace(m.questionInput.Value())
			if question == "" {
				return m, nil
			}
			if m.engine == nil {
				m.err = fmt.Errorf("natural language queries require ANTHROPIC_API_KEY")
				return m, nil
			}
			if len(m.store.Tables()) == 0 {
				m.err = fmt.Errorf("no tables loaded; run 'tabletalk load <file.csv>' first")
				return m, nil
			}
			m.asking = true
			m.err = nil
			return m, askQuestion(m.store, m.engine, question, m.maxAttempts)
		}
		return m, nil

	case tea.KeyTab:
		if m.questionInput.Focused() {
			m.questionInput.Blur()
		} else {
			m.questionInput.Focus()
		}
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	if m.questionInput.Focused() {
		m.questionInput, cmd = m.questionInput.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m model) handleResultViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEsc:
		m.currentView = askView
		m.err = nil
		m.saveSuccess = ""
		m.copied = false
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyCtrlY:
		if m.sqlQuery != "" {
			_ = clipboard.WriteAll(m.sqlQuery)
			m.copied = true
		}
		return m, nil

	case tea.KeyCtrlG:
		// Generate insights for the current result
		if m.engine != nil && len(m.rows) > 0 && !m.summarizing {
			m.summarizing = true
			m.err = nil
			return m, summarizeRows(m.engine, m.rows, m.question)
		}
		return m, nil

	case tea.KeyCtrlW:
		if m.sqlQuery != "" {
			m.currentView = savePromptView
			m.saveInput.Focus()
			m.err = nil
			m.saveSuccess = ""
			m.saveInput.SetValue("results.json")
			return m, textinput.Blink
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) handleSavePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.currentView = resultView
		m.saveInput.SetValue("")
		return m, nil

	case tea.KeyEnter:
		filename := m.saveInput.Value()
		if filename == "" {
			m.err = fmt.Errorf("filename cannot be empty")
			return m, nil
		}
		return m, saveResults(m.question, m.sqlQuery, m.rows, m.insights, filename)
	}

	var cmd tea.Cmd
	m.saveInput, cmd = m.saveInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.currentView == resultView {
		return m.resultViewRender()
	} else if m.currentView == savePromptView {
		return m.savePromptRender()
	}
	return m.askViewRender()
}

func (m model) askViewRender() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		MarginBottom(1)

	b.WriteString(headerStyle.Render("💬 TableTalk"))
	b.WriteString("\n\n")

	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	b.WriteString(inputStyle.Render(m.questionInput.View()))
	b.WriteString("\n\n")

	if m.asking {
		b.WriteString("Thinking...\n")
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v\n", m.err)))
	}

	if m.engine == nil {
		warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		b.WriteString(warnStyle.Render("ANTHROPIC_API_KEY not set: questions are disabled"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.list.View())

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)

	help := "\nTab: Switch focus | Enter: Ask | Esc/Ctrl+C: Quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m model) resultViewContent() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("33"))

	sqlStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("💬 " + m.question))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Generated SQL:"))
	b.WriteString("\n")
	b.WriteString(sqlStyle.Render(m.sqlQuery))
	b.WriteString("\n\n")

	if m.execFailure != "" {
		failStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
		b.WriteString(failStyle.Render(fmt.Sprintf("Query failed after %d attempt(s)", m.execAttempts)))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.execFailure))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(labelStyle.Render(fmt.Sprintf("Results (%d rows):", len(m.rows))))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString("The query returned no rows.\n")
		return b.String()
	}

	table := markdownTable(m.columns, m.rows)
	rendered, err := renderMarkdown(table, m.width)
	if err != nil {
		b.WriteString(table)
	} else {
		b.WriteString(rendered)
	}
	if len(m.rows) > maxDisplayRows {
		noteStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		b.WriteString(noteStyle.Render(fmt.Sprintf("Showing first %d of %d rows", maxDisplayRows, len(m.rows))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if chart := numericChart(m.columns, m.rows); chart != "" {
		b.WriteString(chart)
		b.WriteString("\n")
	}

	if m.insights != "" {
		insightTitle := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("201")).
			Render("💡 Insights")

		b.WriteString(insightTitle)
		b.WriteString("\n\n")

		rendered, err := renderMarkdown(m.insights, m.width)
		if err != nil {
			b.WriteString(m.insights)
		} else {
			b.WriteString(rendered)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m *model) updateResultViewport() {
	if !m.viewportReady || m.sqlQuery == "" {
		return
	}
	m.viewport.SetContent(m.resultViewContent())
}

func (m model) resultViewRender() string {
	if !m.viewportReady {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.viewport.TotalLineCount() > m.viewport.Height {
		scrollPercent := int(m.viewport.ScrollPercent() * 100)
		scrollInfo := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render(fmt.Sprintf("─── %d%% ───", scrollPercent))
		b.WriteString(scrollInfo)
		b.WriteString("\n")
	}

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("226")).
		Bold(true)

	if m.summarizing {
		b.WriteString(statusStyle.Render("⏳ Generating insights..."))
		b.WriteString("\n")
	}

	if m.copied {
		successStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)
		b.WriteString(successStyle.Render("✓ SQL copied to clipboard"))
		b.WriteString("\n")
	}

	if m.saveSuccess != "" {
		successStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)
		b.WriteString(successStyle.Render("✓ " + m.saveSuccess))
		b.WriteString("\n")
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		b.WriteString(errorStyle.Render(fmt.Sprintf("❌ Error: %v", m.err)))
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	var help string
	if len(m.rows) > 0 {
		help = "↑/↓/PgUp/PgDn: Scroll | Ctrl+Y: Copy SQL | Ctrl+G: Insights | Ctrl+W: Save | Esc: Back | Ctrl+C: Quit"
	} else {
		help = "↑/↓/PgUp/PgDn: Scroll | Ctrl+Y: Copy SQL | Esc: Back | Ctrl+C: Quit"
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m model) savePromptRender() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("💾 Save Results"))
	b.WriteString("\n\n")

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(infoStyle.Render(fmt.Sprintf("Saving results for: %s", m.question)))
	b.WriteString("\n\n")

	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	b.WriteString("Filename: ")
	b.WriteString(inputStyle.Render(m.saveInput.View()))
	b.WriteString("\n\n")

	info := "The file will contain:\n"
	info += "  • The question and generated SQL\n"
	info += fmt.Sprintf("  • %d result rows\n", len(m.rows))
	if m.insights != "" {
		info += "  • AI-generated insights\n"
	}
	info += "\nFormat: JSON"
	b.WriteString(infoStyle.Render(info))
	b.WriteString("\n\n")

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v\n", m.err)))
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)

	help := "Enter: Save | Esc: Cancel | Ctrl+C: Quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// newEngine builds the SQL engine when an API key is configured, nil
// otherwise. Surfaces that require the engine report the missing key.
func newEngine() *nlsql.Engine {
	engine, err := nlsql.NewEngine(nlsql.WithLogger(logger))
	if err != nil {
		return nil
	}
	return engine
}

// launchTUI starts the interactive TUI application
func launchTUI(dataDir string) {
	if err := setupLogger(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
	}

	store, err := NewStore(dataDir)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize store", "error", err, "data_dir", dataDir)
		}
		fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := newEngine()
	maxAttempts := cmd.MaxAttemptsFromEnv(nlsql.DefaultMaxAttempts)

	fmt.Println("\n💬 TableTalk Configuration:")
	if engine != nil {
		fmt.Println("   • Natural Language Queries: ✓ Available")
	} else {
		fmt.Println("   • Natural Language Queries: ✗ Not configured (set ANTHROPIC_API_KEY)")
	}
	fmt.Printf("   • Correction Attempts: %d (set TABLETALK_MAX_SQL_RETRIES to change)\n", maxAttempts)
	fmt.Printf("   • Tables Loaded: %d\n", len(store.Tables()))
	fmt.Println()

	p := tea.NewProgram(
		initialModel(store, engine, maxAttempts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// initStore initializes the data store for CLI commands
func initStore(dataDir string) (cmd.StoreInterface, func(), error) {
	if err := setupLogger(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
	}

	store, err := NewStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cleanup := func() {
		store.Close()
	}

	return &storeAdapter{store: store}, cleanup, nil
}

// startServer initializes the store and engine and runs the HTTP server
func startServer(dataDir string, port int) error {
	if err := setupLogger(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
	}

	store, err := NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	return StartServer(ServerConfig{
		Port:        port,
		Store:       store,
		Engine:      newEngine(),
		MaxAttempts: cmd.MaxAttemptsFromEnv(nlsql.DefaultMaxAttempts),
		DataDir:     dataDir,
	})
}

// storeAdapter adapts *Store to cmd.StoreInterface
type storeAdapter struct {
	store *Store
}

func (a *storeAdapter) LoadCSV(path, tableName string) (cmd.TableJSON, error) {
	meta, err := a.store.LoadCSV(path, tableName)
	if err != nil {
		return cmd.TableJSON{}, err
	}
	return convertTableToCmd(meta), nil
}

func (a *storeAdapter) LoadCSVFromURL(url, tableName string) (cmd.TableJSON, error) {
	meta, err := a.store.LoadCSVFromURL(url, tableName)
	if err != nil {
		return cmd.TableJSON{}, err
	}
	return convertTableToCmd(meta), nil
}

func (a *storeAdapter) Tables() []cmd.TableJSON {
	metas := a.store.Tables()
	out := make([]cmd.TableJSON, len(metas))
	for i, meta := range metas {
		out[i] = convertTableToCmd(meta)
	}
	return out
}

func (a *storeAdapter) Table(name string) (cmd.TableJSON, bool) {
	meta, ok := a.store.Table(name)
	if !ok {
		return cmd.TableJSON{}, false
	}
	return convertTableToCmd(meta), true
}

func (a *storeAdapter) SchemaForLLM(names ...string) (string, error) {
	return a.store.SchemaForLLM(names...)
}

func (a *storeAdapter) ExecuteQuery(query string) ([]map[string]any, error) {
	return a.store.ExecuteQuery(query)
}

func (a *storeAdapter) Close() error {
	return a.store.Close()
}

// convertTableToCmd converts *TableMeta to cmd.TableJSON
func convertTableToCmd(meta *TableMeta) cmd.TableJSON {
	out := cmd.TableJSON{
		Name:     meta.Name,
		RowCount: meta.RowCount,
	}
	for _, col := range meta.Columns {
		out.Columns = append(out.Columns, cmd.ColumnJSON{Name: col.Name, Type: col.Type})
	}
	for _, row := range meta.SampleRows {
		out.SampleRows = append(out.SampleRows, row)
	}
	return out
}

func main() {
	// Set up cmd package callbacks
	cmd.LaunchTUI = launchTUI
	cmd.InitStore = initStore
	cmd.StartServer = startServer

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
