package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// XlsxLoader flattens spreadsheet cells into text, one line per row.
// A .xlsx file is a zip archive: cell values referencing the shared string
// table (cell type "s") are resolved against xl/sharedStrings.xml; numeric
// and inline values are used as-is.
type XlsxLoader struct{}

func (l *XlsxLoader) Extensions() []string { return []string{".xlsx"} }

type sharedStrings struct {
	Items []struct {
		Text  string   `xml:"t"`
		Runs  []string `xml:"r>t"`
	} `xml:"si"`
}

type worksheet struct {
	Rows []struct {
		Cells []struct {
			Type   string `xml:"t,attr"`
			Value  string `xml:"v"`
			Inline string `xml:"is>t"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func (l *XlsxLoader) Extract(filename string, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening xlsx archive: %w", err)
	}

	shared, err := readSharedStrings(zr)
	if err != nil {
		return "", err
	}

	var sheetNames []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml") {
			sheetNames = append(sheetNames, f.Name)
		}
	}
	if len(sheetNames) == 0 {
		return "", fmt.Errorf("xlsx archive has no worksheets")
	}
	sort.Strings(sheetNames)

	var parts []string
	for _, name := range sheetNames {
		text, err := readSheet(zr, name, shared)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

func readSharedStrings(zr *zip.Reader) ([]string, error) {
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening shared strings: %w", err)
		}
		defer rc.Close()

		var sst sharedStrings
		if err := xml.NewDecoder(rc).Decode(&sst); err != nil {
			return nil, fmt.Errorf("parsing shared strings: %w", err)
		}

		strs := make([]string, len(sst.Items))
		for i, si := range sst.Items {
			if si.Text != "" {
				strs[i] = si.Text
			} else {
				strs[i] = strings.Join(si.Runs, "")
			}
		}
		return strs, nil
	}
	// Shared strings are optional; numeric-only workbooks omit the part.
	return nil, nil
}

func readSheet(zr *zip.Reader, name string, shared []string) (string, error) {
	var file *zip.File
	for _, f := range zr.File {
		if f.Name == name {
			file = f
			break
		}
	}
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	var ws worksheet
	if err := xml.NewDecoder(rc).Decode(&ws); err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	var sb strings.Builder
	for _, row := range ws.Rows {
		var cells []string
		for _, c := range row.Cells {
			switch c.Type {
			case "s":
				idx, err := strconv.Atoi(c.Value)
				if err != nil || idx < 0 || idx >= len(shared) {
					continue
				}
				cells = append(cells, shared[idx])
			case "inlineStr":
				cells = append(cells, c.Inline)
			default:
				if c.Value != "" {
					cells = append(cells, c.Value)
				}
			}
		}
		if len(cells) > 0 {
			sb.WriteString(strings.Join(cells, ", "))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
