package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	Filename     = "rice_quality_report.pdf"
	MimeType     = "application/pdf"
	DefaultTitle = "Rice Quality Report"
)

// Letter page geometry in points.
const (
	margin      = 72.0
	titleSize   = 18.0
	titleLine   = 22.0
	spacer      = 12.0
	bodySize    = 10.0
	bodyLeading = 14.0
)

// asciiSymbols rewrites symbols that vision models like to emit but the core fonts
// (cp1252) cannot encode. Anything else outside cp1252 falls through to the translator.
var asciiSymbols = strings.NewReplacer(
	"≤", "<=", "≥", ">=", "≈", "~", "≠", "!=", "−", "-",
	"→", "->", "←", "<-", "⇒", "=>",
	"✅", "[ok]", "✔", "[ok]", "✓", "[ok]",
	"❌", "[x]", "✗", "[x]", "⚠", "[!]", "★", "*",
	"\ufe0f", "", "\u200d", "",
)

// GeneratePDF writes text as a report with the default title.
func GeneratePDF(w io.Writer, text string) error {
	return NewGenerator().Write(w, text)
}

// Generator lays out an analysis report as a one-column PDF.
type Generator struct {
	Title string
	// Now stamps the document creation date.
	Now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{Title: DefaultTitle, Now: time.Now}
}

// Generate returns the PDF bytes for text.
func (g *Generator) Generate(text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Write(&buf, text); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the title, a spacer and the body. Every newline in text starts a new
// line in the document; blank lines are kept as vertical space.
func (g *Generator) Write(w io.Writer, text string) error {
	title := g.Title
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetCompression(false)
	doc.SetCatalogSort(true)
	doc.SetCreationDate(now())
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.SetTitle(title, true)
	doc.SetCreator("rice-quality-analyzer", true)
	cp1252 := doc.UnicodeTranslatorFromDescriptor("")
	tr := func(s string) string { return cp1252(asciiSymbols.Replace(s)) }

	doc.AddPage()
	doc.SetFont("Helvetica", "B", titleSize)
	doc.CellFormat(0, titleLine, tr(title), "", 1, "C", false, 0, "")
	doc.Ln(spacer)

	doc.SetFont("Helvetica", "", bodySize)
	for _, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			doc.Ln(bodyLeading)
			continue
		}
		doc.MultiCell(0, bodyLeading, tr(line), "", "L", false)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf failed: %w", err)
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
