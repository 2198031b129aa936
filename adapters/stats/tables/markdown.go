package tables

import (
	"bytes"
	"strings"

	"peerscan/domain/anomaly"
	"peerscan/domain/report"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders every table of the result as a titled markdown table.
// Grouped headers flatten to "Group / Child".
func Markdown(result *anomaly.Result) string {
	var b strings.Builder
	for i, t := range result.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		writeTable(&b, t, escapeCell)
	}
	return b.String()
}

// HTML renders the result to an HTML fragment. Titles, headers and cell
// text are escaped so they render as literal text: no markup, links or
// typographic substitutions survive from the data.
func HTML(result *anomaly.Result) []byte {
	var b strings.Builder
	for i, t := range result.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		writeTable(&b, t, escapeInline)
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.SkipHTML | html.SkipImages | html.Safelink})
	return markdown.ToHTML([]byte(b.String()), p, renderer)
}

func writeTable(b *strings.Builder, t *report.Table, esc func(string) string) {
	b.WriteString("### ")
	b.WriteString(esc(t.Title))
	b.WriteString("\n\n")

	labels := headerLabels(t)
	keys := t.LeafHeaders()

	b.WriteString("|")
	for _, l := range labels {
		b.WriteString(" " + esc(l) + " |")
	}
	b.WriteString("\n|")
	for range labels {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range t.Rows {
		b.WriteString("|")
		for _, k := range keys {
			v, _ := row.Get(k)
			b.WriteString(" " + esc(v.String()) + " |")
		}
		b.WriteString("\n")
	}
}

func headerLabels(t *report.Table) []string {
	var out []string
	for _, h := range t.ColumnHeaders {
		if len(h.Children) == 0 {
			out = append(out, h.Header)
			continue
		}
		for _, c := range h.Children {
			out = append(out, h.Header+" / "+c.Header)
		}
	}
	return out
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeInline backslash-escapes every character the parser treats as markup.
func escapeInline(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
			continue
		case r < 0x80 && bytes.IndexByte(parser.EscapeChars, byte(r)) >= 0:
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
