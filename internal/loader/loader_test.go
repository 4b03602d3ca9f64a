package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/ragqa-go/internal/rag"
)

// writeFile writes content to name inside a fresh temp dir and returns the path.
func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// buildPDF assembles a minimal single-font PDF with one page per entry in
// pages. Offsets in the xref table are computed from the actual bytes.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	n := len(pages)
	// Object layout: 1 catalog, 2 pages, 3 font, then (page, content) pairs.
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// Plain text
// ---------------------------------------------------------------------------

func TestLoad_TextWholeFile(t *testing.T) {
	t.Parallel()

	content := "The refund window is 30 days.\nShipping is free over $50."
	path := writeFile(t, "policy.txt", []byte(content))

	chunks, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Content != content {
		t.Errorf("content: got %q", c.Content)
	}
	if c.Source != path {
		t.Errorf("source: want %q, got %q", path, c.Source)
	}
	if c.Metadata[MetaFormat] != "txt" {
		t.Errorf("format: got %q", c.Metadata[MetaFormat])
	}
	if _, ok := c.Metadata[MetaPage]; ok {
		t.Error("text chunks must not carry a page number")
	}
}

func TestLoad_ExtensionIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "NOTES.TXT", []byte("upper case extension"))
	chunks, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "upper case extension" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestLoad_TextStripsBOM(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...))
	chunks, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if chunks[0].Content != "hello" {
		t.Errorf("want BOM stripped, got %q", chunks[0].Content)
	}
}

func TestLoad_TextInvalidUTF8(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "latin1.txt", []byte{'c', 'a', 'f', 0xE9, '\n'})
	chunks, err := Load(context.Background(), path)
	if !errors.Is(err, rag.ErrRead) {
		t.Fatalf("want ErrRead, got %v", err)
	}
	if chunks != nil {
		t.Errorf("no partial result expected, got %+v", chunks)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, rag.ErrRead) {
		t.Fatalf("want ErrRead, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Unsupported formats
// ---------------------------------------------------------------------------

func TestLoad_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		wantName string
	}{
		{name: "docx", file: "report.docx", wantName: `".docx"`},
		{name: "csv upper", file: "DATA.CSV", wantName: `".csv"`},
		{name: "no extension", file: "README", wantName: `"(none)"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// The file does not exist: dispatch must fail before any I/O.
			path := filepath.Join(t.TempDir(), tc.file)
			_, err := Load(context.Background(), path)
			if !errors.Is(err, rag.ErrUnsupportedFormat) {
				t.Fatalf("want ErrUnsupportedFormat, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantName) {
				t.Errorf("error %q should name the extension %s", err, tc.wantName)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("loader must not create files, stat err=%v", statErr)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"a.txt": true, "b.PDF": true, "c.md": true, "d.docx": false, "e": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
	exts := Extensions()
	if len(exts) == 0 || exts[0] > exts[len(exts)-1] {
		t.Errorf("Extensions must be sorted and non-empty: %v", exts)
	}
}

// ---------------------------------------------------------------------------
// PDF
// ---------------------------------------------------------------------------

func TestLoad_PDFOneChunkPerPage(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "guide.pdf", buildPDF([]string{"Page one text", "Page two text", "Page three text"}))

	chunks, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(chunks))
	}
	for i, want := range []string{"Page one text", "Page two text", "Page three text"} {
		c := chunks[i]
		if !strings.Contains(c.Content, want) {
			t.Errorf("page %d: want content containing %q, got %q", i+1, want, c.Content)
		}
		if c.Metadata[MetaPage] != fmt.Sprint(i+1) {
			t.Errorf("page %d: page metadata %q", i+1, c.Metadata[MetaPage])
		}
		if c.Metadata[MetaFormat] != "pdf" || c.Source != path {
			t.Errorf("page %d: unexpected metadata %+v source %q", i+1, c.Metadata, c.Source)
		}
	}
}

func TestLoad_PDFCorrupt(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "broken.pdf", []byte("this is not a pdf at all, just some bytes pretending to be one"))
	chunks, err := Load(context.Background(), path)
	if !errors.Is(err, rag.ErrRead) {
		t.Fatalf("want ErrRead, got %v", err)
	}
	if chunks != nil {
		t.Errorf("no partial result expected")
	}
}

// ---------------------------------------------------------------------------
// Splitting
// ---------------------------------------------------------------------------

func TestLoader_SplitsLongSegments(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("abcdefghij", 5) // 50 runes
	path := writeFile(t, "long.txt", []byte(text))

	l := New(&Config{ChunkSize: 20, ChunkOverlap: 5})
	chunks, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Windows start at 0, 15, 30; the third reaches the end.
	if len(chunks) != 3 {
		t.Fatalf("want 3 windows, got %d", len(chunks))
	}
	if chunks[1].Content != text[15:35] {
		t.Errorf("window 1: got %q", chunks[1].Content)
	}
	for i, c := range chunks {
		if c.Metadata[MetaChunkIndex] != fmt.Sprint(i) {
			t.Errorf("chunk %d: index metadata %q", i, c.Metadata[MetaChunkIndex])
		}
		if c.Metadata[MetaFormat] != "txt" {
			t.Errorf("chunk %d: format metadata lost", i)
		}
	}
}

func TestWindows_RuneSafe(t *testing.T) {
	t.Parallel()

	got := windows("日本語のテキスト", 3, 0)
	want := []string{"日本語", "のテキ", "スト"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNew_ClampsOverlap(t *testing.T) {
	t.Parallel()

	l := New(&Config{ChunkSize: 100, ChunkOverlap: 100})
	if l.cfg.ChunkOverlap != 10 {
		t.Errorf("overlap: want 10, got %d", l.cfg.ChunkOverlap)
	}
}
