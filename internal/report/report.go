// Package report renders shared-actor recommendations for humans and machines.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/markdown"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format, in the order shown in help text.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatMarkdown}

// ParseFormat validates raw. An empty value selects FormatTable.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of %v)", raw, Formats)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the usual file extension of the format, without a dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// Options carries the context printed around the ranking.
type Options struct {
	Title string
	RunID string
}

// Write renders recs to w in the given format.
func Write(w io.Writer, format Format, recs []credit.Recommendation, opts Options) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, recs, opts)
	case FormatCSV:
		return writeCSV(w, recs)
	case FormatJSON:
		return writeJSON(w, recs)
	case FormatMarkdown:
		return writeMarkdown(w, recs, opts)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeTable(w io.Writer, recs []credit.Recommendation, opts Options) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if opts.Title != "" {
		t.SetTitle("%s", opts.Title)
	}
	t.AppendHeader(table.Row{"#", credit.RecommendationHeader[0], credit.RecommendationHeader[1]})
	for i, r := range recs {
		t.AppendRow(table.Row{i + 1, r.Title, r.SharedActors})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func writeCSV(w io.Writer, recs []credit.Recommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(credit.RecommendationHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write([]string{r.Title, strconv.Itoa(r.SharedActors)}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, recs []credit.Recommendation) error {
	if recs == nil {
		recs = []credit.Recommendation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeMarkdown(w io.Writer, recs []credit.Recommendation, opts Options) error {
	md := markdown.NewMarkdown(w)
	title := opts.Title
	if title == "" {
		title = "Movies with shared actors"
	}
	md.H1(title)
	md.PlainText("")
	if opts.RunID != "" {
		md.PlainTextf("Run `%s`", opts.RunID)
		md.PlainText("")
	}
	if len(recs) == 0 {
		md.Note("No credits were found for this run.")
	} else {
		md.Table(recommendationTable(recs))
	}
	if err := md.Build(); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return nil
}

func recommendationTable(recs []credit.Recommendation) markdown.TableSet {
	rows := make([][]string, 0, len(recs))
	for i, r := range recs {
		rows = append(rows, []string{strconv.Itoa(i + 1), escapeCell(r.Title), strconv.Itoa(r.SharedActors)})
	}
	return markdown.TableSet{
		Header:    []string{"#", credit.RecommendationHeader[0], credit.RecommendationHeader[1]},
		Rows:      rows,
		Alignment: []markdown.TableAlignment{markdown.AlignRight, markdown.AlignLeft, markdown.AlignRight},
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
