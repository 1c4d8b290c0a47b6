package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zombor/expense-scanner/internal/extract"
)

// readLines accepts a JSON array of lines, a {"lines": [...]} object, or
// plain text with one receipt line per row. Input that is not valid JSON is
// read as text even when it opens with a bracket, like "[Reprint]".
func readLines(data []byte) ([]extract.OCRLine, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return []extract.OCRLine{}, nil
	case !json.Valid(trimmed):
	case trimmed[0] == '[':
		var lines []extract.OCRLine
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, fmt.Errorf("decoding lines: %w", err)
		}
		return lines, nil
	case trimmed[0] == '{':
		var doc struct {
			Lines []extract.OCRLine `json:"lines"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decoding lines: %w", err)
		}
		return doc.Lines, nil
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return extract.Lines(strings.Split(text, "\n")...), nil
}

// parseFile runs the extractor over a file of OCR lines and writes the result
// as indented JSON
func parseFile(path string, stdin io.Reader, stdout io.Writer, extractor *extract.Extractor, categories []string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	lines, err := readLines(data)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(extractor.ParseReceipt(lines, categories)); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
