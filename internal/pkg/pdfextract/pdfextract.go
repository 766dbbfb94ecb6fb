package pdfextract

import (
	"bytes"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the entire content of r and extracts plain text from the PDF.
// Returns empty string and nil error if the PDF has no extractable text.
func ExtractText(r io.Reader) (string, error) {
	pdfReader, err := open(r)
	if err != nil || pdfReader == nil {
		return "", err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExtractRows returns the visual text lines of every page, top to bottom.
// Glyphs sharing a baseline form one row, ordered left to right.
func ExtractRows(r io.Reader) ([]string, error) {
	pdfReader, err := open(r)
	if err != nil || pdfReader == nil {
		return nil, err
	}

	var lines []string
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, rowsOf(page.Content().Text)...)
	}
	return lines, nil
}

func rowsOf(texts []pdf.Text) []string {
	rows := make(map[float64][]pdf.Text)
	for _, t := range texts {
		y := math.Round(t.Y*10) / 10
		rows[y] = append(rows[y], t)
	}

	ys := make([]float64, 0, len(rows))
	for y := range rows {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	lines := make([]string, 0, len(ys))
	for _, y := range ys {
		row := rows[y]
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
		var sb strings.Builder
		for _, t := range row {
			sb.WriteString(t.S)
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func open(r io.Reader) (*pdf.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return pdf.NewReader(bytes.NewReader(b), int64(len(b)))
}
