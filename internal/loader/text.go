package loader

import (
	"fmt"
	"unicode/utf8"
)

// TextLoader handles plain text files.
type TextLoader struct{}

func (l *TextLoader) Extensions() []string { return []string{".txt", ".md"} }

func (l *TextLoader) Extract(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	return string(data), nil
}
