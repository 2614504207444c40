package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVLoader flattens CSV rows into one line of text per record. When the
// file has a header row, each cell is prefixed with its column name so the
// text stays meaningful after chunking ("name: Alice, age: 30").
type CSVLoader struct{}

func (l *CSVLoader) Extensions() []string { return []string{".csv"} }

func (l *CSVLoader) Extract(filename string, data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading csv header: %w", err)
	}

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading csv record: %w", err)
		}
		for i, field := range record {
			if i > 0 {
				sb.WriteString(", ")
			}
			if i < len(header) && header[i] != "" {
				sb.WriteString(header[i])
				sb.WriteString(": ")
			}
			sb.WriteString(field)
		}
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		// Header-only file: keep the header as content.
		return strings.Join(header, ", "), nil
	}
	return sb.String(), nil
}
