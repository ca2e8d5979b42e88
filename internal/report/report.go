// Package report renders a recorded run as a Markdown summary and as HTML.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/RouteFinder/internal/database"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
)

//go:embed templates/report.html
var templateFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

var page = template.Must(template.New("report.html").
	Funcs(template.FuncMap{"markdown": renderMarkdown}).
	ParseFS(templateFS, "templates/report.html"))

// Store reads runs from the ledger.
type Store interface {
	GetRun(id string) (*database.Run, error)
	GetLastRun() (*database.Run, error)
	GetAssessmentsForRun(runID string) ([]database.Assessment, error)
}

// Load returns a run and its assessments. An empty runID selects the most
// recent run.
func Load(store Store, runID string) (*database.Run, []database.Assessment, error) {
	var run *database.Run
	var err error
	if runID == "" {
		run, err = store.GetLastRun()
	} else {
		run, err = store.GetRun(runID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading run: %w", err)
	}
	if run == nil {
		if runID == "" {
			return nil, nil, fmt.Errorf("no runs recorded yet")
		}
		return nil, nil, fmt.Errorf("run %s not found", runID)
	}

	assessments, err := store.GetAssessmentsForRun(run.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading assessments: %w", err)
	}
	return run, assessments, nil
}

// Markdown summarizes a run: header facts, grade counts, the dangerous
// routes and the full table.
func Markdown(run *database.Run, assessments []database.Assessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", run.ID)
	fmt.Fprintf(&b, "- **Input:** %s\n", run.InputPath)
	fmt.Fprintf(&b, "- **Output:** %s\n", run.OutputPath)
	fmt.Fprintf(&b, "- **Classifier:** %s\n", run.Provider)
	fmt.Fprintf(&b, "- **Started:** %s\n", deref(run.StartedAt))
	if run.Finished() {
		fmt.Fprintf(&b, "- **Finished:** %s\n", deref(run.FinishedAt))
	} else {
		b.WriteString("- **Finished:** did not complete\n")
	}
	fmt.Fprintf(&b, "- **Rows:** %d (%d failed)\n\n", len(assessments), countFailed(assessments))

	b.WriteString("## Grades\n\n| Grade | Routes |\n|---|---|\n")
	counts := make(map[string]int)
	for _, a := range assessments {
		counts[a.Grade]++
	}
	for _, g := range append(append([]grade.Grade{}, grade.Severe...), grade.Unknown) {
		fmt.Fprintf(&b, "| %s | %d |\n", g, counts[g.String()])
	}

	var dangerous []database.Assessment
	for _, a := range assessments {
		if g, _ := grade.Parse(a.Grade); g >= grade.R {
			dangerous = append(dangerous, a)
		}
	}
	if len(dangerous) > 0 {
		b.WriteString("\n## Dangerous routes\n\n")
		for _, a := range dangerous {
			fmt.Fprintf(&b, "- **%s** [%s](%s): %s\n", a.Grade, a.Route, a.URL, a.Reasoning)
		}
	}

	b.WriteString("\n## All routes\n\n| Line | Route | Grade | Reason | Notes |\n|---|---|---|---|---|\n")
	for _, a := range assessments {
		fmt.Fprintf(&b, "| %d | [%s](%s) | %s | %s | %s |\n",
			a.Line, cell(a.Route), a.URL, a.Grade, cell(a.Reasoning), cell(deref(a.Notes)))
	}

	return b.String()
}

// History lists earlier assessments of one route, newest first, one per
// line. It returns the empty string when there are none.
func History(assessments []database.Assessment) string {
	if len(assessments) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous grades:\n")
	for _, a := range assessments {
		fmt.Fprintf(&b, "  %s %s (run %s, %s): %s\n",
			deref(a.AssessedAt), a.Grade, a.RunID, a.Source, strings.Join(strings.Fields(a.Reasoning), " "))
	}
	return b.String()
}

// Render writes the HTML report of a run.
func Render(w io.Writer, run *database.Run, assessments []database.Assessment) error {
	return page.Execute(w, map[string]any{
		"Run":       run,
		"Markdown":  Markdown(run, assessments),
		"Generated": time.Now().Format("2006-01-02 15:04"),
	})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func countFailed(assessments []database.Assessment) int {
	n := 0
	for _, a := range assessments {
		if a.Source == "failed" {
			n++
		}
	}
	return n
}

// cell makes text safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
