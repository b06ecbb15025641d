package render

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// PageBreakTag forces a new page wherever it appears in the Markdown.
const PageBreakTag = `<div class="page-break"></div>`

var (
	pageBreakTagRe = regexp.MustCompile(`(?i)<div\s+class\s*=\s*["']page-break["']\s*>\s*</div>`)
	pageBreakRe    = regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*\bpage-break\b`)

	buttonLinkHTMLRe = regexp.MustCompile(`<a href="([^"]*)">([^<]*)</a>\{\s*\.action-button\s*\}`)
	buttonTextHTMLRe = regexp.MustCompile(`\[([^\]<]+)\]\{\s*\.action-button\s*\}`)
)

// documentDate is stamped on every PDF so identical input renders identical bytes.
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Phase names the rendering step that failed.
type Phase string

const (
	PhaseMarkdown Phase = "markdown"
	PhaseFonts    Phase = "fonts"
	PhasePDF      Phase = "pdf"
)

// RenderError is returned for every rendering failure.
type RenderError struct {
	Phase Phase
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Phase, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Metadata is written into the PDF info dictionary.
type Metadata struct {
	Title   string
	Subject string
	Author  string
}

// Document is a rendered ebook.
type Document struct {
	PDF   []byte
	HTML  string
	Pages int
}

// Renderer converts Markdown into a styled PDF. It is safe for concurrent use.
type Renderer struct {
	theme Theme
	md    goldmark.Markdown
}

func New(theme Theme) *Renderer {
	return &Renderer{
		theme: theme,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Footnote, extension.DefinitionList),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render lays md out without document metadata.
func (r *Renderer) Render(md string) (Document, error) {
	return r.RenderWithMeta(md, Metadata{})
}

// RenderWithMeta lays md out and records meta in the PDF.
func (r *Renderer) RenderWithMeta(md string, meta Metadata) (Document, error) {
	src := []byte(normalizePageBreaks(md))
	if len(bytes.TrimSpace(src)) == 0 {
		return Document{}, &RenderError{Phase: PhaseMarkdown, Err: errors.New("document is empty")}
	}

	doc := r.md.Parser().Parse(text.NewReader(src))
	htmlOut, err := r.mdToHTML(src, doc)
	if err != nil {
		return Document{}, &RenderError{Phase: PhaseMarkdown, Err: err}
	}

	pdf := r.newPDF(meta)
	fonts, err := registerFonts(pdf, r.theme)
	if err != nil {
		return Document{}, &RenderError{Phase: PhaseFonts, Err: err}
	}

	if err := layoutDocument(pdf, r.theme, fonts, src, doc); err != nil {
		return Document{}, &RenderError{Phase: PhasePDF, Err: err}
	}
	pages := pdf.PageNo()

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return Document{}, &RenderError{Phase: PhasePDF, Err: err}
	}
	return Document{PDF: out.Bytes(), HTML: htmlOut, Pages: pages}, nil
}

func (r *Renderer) mdToHTML(src []byte, doc ast.Node) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return "", err
	}
	out := buttonLinkHTMLRe.ReplaceAllString(buf.String(), `<a href="$1" class="action-button">$2</a>`)
	return buttonTextHTMLRe.ReplaceAllString(out, `<a class="action-button">$1</a>`), nil
}

func (r *Renderer) newPDF(meta Metadata) *fpdf.Fpdf {
	pageSize := r.theme.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}
	pdf := fpdf.New("P", "mm", pageSize, r.theme.FontDir)
	pdf.SetMargins(r.theme.Margin, r.theme.Margin, r.theme.Margin)
	pdf.SetAutoPageBreak(false, r.theme.Margin)
	pdf.SetCellMargin(0)
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("ebookgen", true)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	return pdf
}

// normalizePageBreaks puts every page-break tag in its own HTML block so a heading
// written right after it is still parsed as a heading. Tags inside fenced code,
// indented code and code spans are left alone.
func normalizePageBreaks(md string) string {
	if !pageBreakTagRe.MatchString(md) {
		return md
	}
	var (
		sb       strings.Builder
		fence    string
		indented bool
		blank    = true
	)
	for _, line := range strings.SplitAfter(md, "\n") {
		content := strings.TrimRight(line, "\r\n")
		isBlank := strings.TrimSpace(content) == ""
		switch {
		case fence != "":
			if closesFence(content, fence) {
				fence = ""
			}
			sb.WriteString(line)
		case indentWidth(content) >= 4 && !isBlank && (blank || indented):
			indented = true
			sb.WriteString(line)
		default:
			if !isBlank {
				indented = false
			}
			if m := fenceOpenRe.FindStringSubmatch(content); m != nil {
				fence = m[1]
				sb.WriteString(line)
				break
			}
			sb.WriteString(breakOutsideCodeSpans(line))
		}
		blank = isBlank
	}
	return sb.String()
}

var fenceOpenRe = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

func closesFence(line, fence string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || !strings.HasPrefix(trimmed, fence) {
		return false
	}
	rest := strings.TrimLeft(trimmed, fence[:1])
	return strings.TrimSpace(rest) == ""
}

func indentWidth(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4 - n%4
		default:
			return n
		}
	}
	return n
}

// breakOutsideCodeSpans isolates the tags of one line that are not within backticks.
func breakOutsideCodeSpans(line string) string {
	matches := pageBreakTagRe.FindAllStringIndex(line, -1)
	if matches == nil {
		return line
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(line[last:m[0]])
		if strings.Count(line[:m[0]], "`")%2 == 1 {
			sb.WriteString(line[m[0]:m[1]])
		} else {
			sb.WriteString("\n\n" + PageBreakTag + "\n\n")
		}
		last = m[1]
	}
	sb.WriteString(line[last:])
	return sb.String()
}
