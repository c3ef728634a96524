// Package output renders analysis results as text, JSON, Markdown or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/cwelens/pkg/models"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// Renderable defines data that can render itself in multiple formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the underlying data for JSON and TOON serialization.
	RenderData() any
}

// Formatter writes Renderables to stdout or a file.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter. A non-empty output path is created and
// disables color.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	f := &Formatter{format: format, writer: os.Stdout, colored: colored}
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return nil, fmt.Errorf("creating output file: %w", err)
		}
		f.writer = file
		f.file = file
		f.colored = false
	}
	return f, nil
}

// NewWriterFormatter creates a formatter over an existing writer.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the formatter's writer if it's a file.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Writer returns the underlying writer.
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// Colored returns whether colored output is enabled.
func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes data in the configured format. Data that is not Renderable
// is serialized as-is.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	if !ok {
		return f.outputRaw(data)
	}
	switch f.format {
	case FormatJSON:
		return writeJSON(f.writer, r.RenderData())
	case FormatTOON:
		return writeTOON(f.writer, r.RenderData())
	case FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	default:
		return r.RenderText(f.writer, f.colored)
	}
}

func (f *Formatter) outputRaw(data any) error {
	switch f.format {
	case FormatTOON:
		return writeTOON(f.writer, data)
	case FormatMarkdown:
		fmt.Fprintln(f.writer, "```json")
		if err := writeJSON(f.writer, data); err != nil {
			return err
		}
		fmt.Fprintln(f.writer, "```")
		return nil
	default:
		return writeJSON(f.writer, data)
	}
}

// Marshal serializes data for machine consumption. Markdown wraps TOON in a
// code fence; text falls back to TOON.
func Marshal(format Format, data any) (string, error) {
	if format == FormatJSON {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return "", err
	}
	if format == FormatMarkdown {
		return "```\n" + string(out) + "\n```", nil
	}
	return string(out), nil
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeTOON(w io.Writer, data any) error {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return fmt.Errorf("encoding toon: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

// Table is a Renderable table with headers, rows, and optional footer.
type Table struct {
	Title   string     `json:"-"`
	Headers []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Footer  []string   `json:"-"`
	Data    any        `json:"data,omitempty"`
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{Title: title, Headers: headers, Rows: rows, Footer: footer, Data: data}
}

// RenderData returns Data, or the rows keyed by header.
func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		out = append(out, m)
	}
	return out
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	heading(w, t.Title, "=", colored)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Footer: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		footer := make([]any, len(t.Footer))
		for i, v := range t.Footer {
			footer[i] = v
		}
		table.Footer(footer...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	writeMarkdownRow(w, t.Headers)
	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	writeMarkdownRow(w, seps)
	for _, row := range t.Rows {
		writeMarkdownRow(w, row)
	}
	if len(t.Footer) > 0 {
		writeMarkdownRow(w, t.Footer)
	}
	fmt.Fprintln(w)
	return nil
}

// writeMarkdownRow escapes pipes so issue messages cannot break the table.
func writeMarkdownRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

// Section is a titled block of preformatted lines.
type Section struct {
	Title string   `json:"title,omitempty"`
	Lines []string `json:"lines,omitempty"`
	Data  any      `json:"data,omitempty"`
}

func (s *Section) RenderData() any {
	if s.Data != nil {
		return s.Data
	}
	return s
}

func (s *Section) RenderText(w io.Writer, colored bool) error {
	heading(w, s.Title, "-", colored)
	for _, l := range s.Lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w)
	return nil
}

func (s *Section) RenderMarkdown(w io.Writer) error {
	if s.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", s.Title)
	}
	for _, l := range s.Lines {
		fmt.Fprintf(w, "- %s\n", l)
	}
	fmt.Fprintln(w)
	return nil
}

// Report is a compound Renderable made of sections and tables.
type Report struct {
	Title    string       `json:"title,omitempty"`
	Sections []Renderable `json:"-"`
	Data     any          `json:"data,omitempty"`
}

func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{"title": r.Title, "sections": parts}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	if r.Title != "" {
		if colored {
			color.New(color.Bold, color.FgCyan).Fprintln(w, r.Title)
		} else {
			fmt.Fprintln(w, r.Title)
		}
		fmt.Fprintln(w, strings.Repeat("=", len(r.Title)))
		fmt.Fprintln(w)
	}
	for _, s := range r.Sections {
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

func heading(w io.Writer, title, underline string, colored bool) {
	if title == "" {
		return
	}
	if colored {
		color.New(color.Bold).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(underline, len(title)))
}

// Message helpers for colored output

func (f *Formatter) Success(format string, args ...any) {
	f.message(color.FgGreen, "", format, args...)
}

func (f *Formatter) Warning(format string, args ...any) {
	f.message(color.FgYellow, "WARNING: ", format, args...)
}

func (f *Formatter) Error(format string, args ...any) {
	f.message(color.FgRed, "ERROR: ", format, args...)
}

func (f *Formatter) Info(format string, args ...any) {
	f.message(color.FgCyan, "", format, args...)
}

func (f *Formatter) message(attr color.Attribute, prefix, format string, args ...any) {
	if f.colored {
		color.New(attr).Fprintf(f.writer, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.writer, prefix+format+"\n", args...)
}

// SeverityColor colors text by SonarQube severity.
func SeverityColor(severity models.Severity, text string) string {
	switch severity {
	case models.SeverityBlocker:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case models.SeverityCritical:
		return color.RedString(text)
	case models.SeverityMajor:
		return color.YellowString(text)
	case models.SeverityMinor:
		return color.CyanString(text)
	default:
		return text
	}
}

// ConfidenceColor colors text by classification confidence.
func ConfidenceColor(c models.Confidence, text string) string {
	switch c {
	case models.ConfidenceHigh:
		return color.GreenString(text)
	case models.ConfidenceMedium:
		return color.YellowString(text)
	default:
		return color.New(color.Faint).Sprint(text)
	}
}

// CVSSColor colors text by CVSS base severity.
func CVSSColor(severity, text string) string {
	switch severity {
	case "CRITICAL":
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case "HIGH":
		return color.RedString(text)
	case "MEDIUM":
		return color.YellowString(text)
	case "LOW":
		return color.CyanString(text)
	default:
		return text
	}
}
