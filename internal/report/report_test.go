package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"rice-quality-analyzer/internal/pkg/pdfextract"
)

func fixedGenerator() *Generator {
	return &Generator{
		Title: DefaultTitle,
		Now:   func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestGeneratePreservesLineBreaks(t *testing.T) {
	text := "1. Rice type classification: Basmati\n" +
		"2. Broken grains 4%, discoloration 2%\n" +
		"\n" +
		"3. Foreign objects: none detected\n" +
		"5. Recommendations: sort before milling"

	data, err := fixedGenerator().Generate(text)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", data[:min(len(data), 16)])
	}

	rows, err := pdfextract.ExtractRows(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ExtractRows() error = %v", err)
	}

	want := []string{DefaultTitle}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			want = append(want, line)
		}
	}

	next := 0
	for _, line := range want {
		found := -1
		for i := next; i < len(rows); i++ {
			if compact(rows[i]) == compact(line) {
				found = i
				break
			}
		}
		if found < 0 {
			t.Fatalf("line %q not found as its own row after row %d; rows = %q", line, next, rows)
		}
		next = found + 1
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := fixedGenerator()
	first, err := g.Generate("Jasmine rice\nGood quality")
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Generate("Jasmine rice\nGood quality")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("Generate() produced different bytes for the same input and clock")
	}
}

func TestGenerateEmptyReport(t *testing.T) {
	data, err := NewGenerator().Generate("")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	text, err := pdfextract.ExtractText(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if !strings.Contains(compact(text), compact(DefaultTitle)) {
		t.Fatalf("title missing from %q", text)
	}
}

func TestGenerateKeepsCommonSymbols(t *testing.T) {
	text := "Broken grains ≤ 5% ≈ 3% ✅\nMoisture ≥ 14% ⚠️ dry before storage\nStones ❌ → re-sort"
	want := []string{
		"Broken grains <= 5% ~ 3% [ok]",
		"Moisture >= 14% [!] dry before storage",
		"Stones [x] -> re-sort",
	}

	data, err := fixedGenerator().Generate(text)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	rows, err := pdfextract.ExtractRows(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ExtractRows() error = %v", err)
	}
	for _, line := range want {
		found := false
		for _, row := range rows {
			if compact(row) == compact(line) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("line %q not found; rows = %q", line, rows)
		}
	}
}

func TestGeneratePDFWritesDefaultTitle(t *testing.T) {
	var buf bytes.Buffer
	if err := GeneratePDF(&buf, "Jasmine rice, 2% broken"); err != nil {
		t.Fatalf("GeneratePDF() error = %v", err)
	}
	rows, err := pdfextract.ExtractRows(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ExtractRows() error = %v", err)
	}
	if len(rows) < 2 || compact(rows[0]) != compact(DefaultTitle) || compact(rows[1]) != compact("Jasmine rice, 2% broken") {
		t.Fatalf("rows = %q", rows)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "one", want: []string{"one"}},
		{in: "one\r\ntwo\n", want: []string{"one", "two"}},
		{in: "a\n\nb", want: []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("**Rice type:** Basmati\nBroken grains: 4%\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<strong>Rice type:</strong> Basmati<br>") {
		t.Errorf("missing bold text with hard wrap in %q", html)
	}
	if !strings.Contains(html, "Broken grains: 4%") {
		t.Errorf("missing second line in %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw html leaked into %q", html)
	}
}
