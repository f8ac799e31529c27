// Package report renders a Markdown summary of a snapdeck run.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/root4loot/snapdeck"
)

// Extension of the report file.
const Extension = ".md"

const timeLayout = "2006-01-02 15:04:05 MST"

// Write renders the summary of the run called name to w.
func Write(w io.Writer, name string, summary *snapdeck.Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Snapdeck Report: " + name)
	md.PlainText("")

	writeSummary(md, summary)
	writeAlert(md, summary)
	writeOutcomes(md, summary)

	return md.Build()
}

// WriteFile writes the report next to the document, replacing its extension
// with .md. It returns the report path.
func WriteFile(documentPath, name string, summary *snapdeck.Summary) (string, error) {
	path := strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + Extension

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}

	if err := Write(f, name, summary); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, f.Close()
}

func writeSummary(md *markdown.Markdown, s *snapdeck.Summary) {
	output := s.Output
	if output == "" {
		output = "-"
	}

	rows := [][]string{
		{"Document", output},
		{"Targets", strconv.Itoa(s.Attempted)},
		{"Captured", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"Pages", strconv.Itoa(s.Pages)},
	}
	if !s.StartedAt.IsZero() {
		rows = append(rows,
			[]string{"Started", s.StartedAt.Format(timeLayout)},
			[]string{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()},
		)
	}

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeAlert(md *markdown.Markdown, s *snapdeck.Summary) {
	switch {
	case s.Attempted == 0:
		md.Note("No targets were given.")
	case !s.HasOutput():
		md.Warningf("No screenshots were captured. All %d target(s) failed or were skipped.", s.Attempted)
	case s.Failed > 0:
		md.Note(fmt.Sprintf("%d of %d target(s) could not be captured.", s.Failed, s.Attempted))
	default:
		md.Tip("Every target was captured.")
	}
	md.PlainText("")
}

func writeOutcomes(md *markdown.Markdown, s *snapdeck.Summary) {
	md.H2("Targets")
	md.PlainText("")

	if len(s.Outcomes) == 0 {
		md.PlainText("No targets.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Outcomes))
	for i, o := range s.Outcomes {
		rows[i] = []string{strconv.Itoa(i + 1), o.URL, status(o), detail(o)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Status", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func status(o snapdeck.Outcome) string {
	switch {
	case o.Err != nil:
		return "❌ failed"
	case o.Duplicate:
		return "⚪ duplicate"
	default:
		return "✅ captured"
	}
}

func detail(o snapdeck.Outcome) string {
	if o.Err == nil {
		return "-"
	}
	msg := strings.ReplaceAll(o.Err.Error(), "|", "\\|")
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > 80 {
		msg = msg[:77] + "..."
	}
	return msg
}
