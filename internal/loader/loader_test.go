package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRegistryUnsupportedFormat(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract("image.png", []byte{0x89, 0x50})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), ".png") {
		t.Errorf("error %q does not name the extension", err)
	}
}

func TestRegistrySupported(t *testing.T) {
	r := DefaultRegistry()

	for _, name := range []string{"a.pdf", "b.csv", "c.xlsx", "d.docx", "e.txt", "F.TXT"} {
		if !r.Supported(name) {
			t.Errorf("Supported(%q) = false, want true", name)
		}
	}
	if r.Supported("archive.zip") {
		t.Error("Supported(archive.zip) = true, want false")
	}
}

func TestTextLoader(t *testing.T) {
	r := DefaultRegistry()

	text, err := r.Extract("notes.txt", []byte("hello\nworld"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "hello\nworld" {
		t.Errorf("text = %q", text)
	}
}

func TestTextLoaderRejectsBinary(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract("notes.txt", []byte{0xff, 0xfe, 0x00, 0x81})
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if exErr.Filename != "notes.txt" {
		t.Errorf("Filename = %q, want notes.txt", exErr.Filename)
	}
}

func TestCSVLoader(t *testing.T) {
	r := DefaultRegistry()

	data := []byte("name,age\nAlice,30\nBob,25\n")
	text, err := r.Extract("people.csv", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "name: Alice, age: 30") {
		t.Errorf("text = %q, want header-prefixed cells", text)
	}
	if !strings.Contains(text, "name: Bob") {
		t.Errorf("text = %q, missing second record", text)
	}
}

func TestCSVLoaderEmpty(t *testing.T) {
	r := DefaultRegistry()

	text, err := r.Extract("empty.csv", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestPDFLoaderCorrupt(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract("broken.pdf", []byte("not a pdf at all"))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
}

// buildZip assembles an in-memory zip archive from name->content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestDocxLoader(t *testing.T) {
	r := DefaultRegistry()

	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildZip(t, map[string]string{"word/document.xml": doc})

	text, err := r.Extract("memo.docx", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "First paragraph.\n") {
		t.Errorf("text = %q, missing first paragraph", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("text = %q, split runs not joined", text)
	}
}

func TestDocxLoaderMissingDocument(t *testing.T) {
	r := DefaultRegistry()
	data := buildZip(t, map[string]string{"other.xml": "<x/>"})

	_, err := r.Extract("memo.docx", data)
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
}

func TestXlsxLoader(t *testing.T) {
	r := DefaultRegistry()

	sst := `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <si><t>Region</t></si>
  <si><t>Revenue</t></si>
  <si><t>North</t></si>
</sst>`
	sheet := `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
    <row><c t="s"><v>2</v></c><c><v>1250.5</v></c></row>
  </sheetData>
</worksheet>`
	data := buildZip(t, map[string]string{
		"xl/sharedStrings.xml":     sst,
		"xl/worksheets/sheet1.xml": sheet,
	})

	text, err := r.Extract("sales.xlsx", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Region, Revenue") {
		t.Errorf("text = %q, missing header row", text)
	}
	if !strings.Contains(text, "North, 1250.5") {
		t.Errorf("text = %q, missing data row", text)
	}
}

func TestXlsxLoaderCorrupt(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Extract("sales.xlsx", []byte("definitely not a zip"))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
}
