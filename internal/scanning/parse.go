package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/expense-scanner/internal/extract"
)

// parseLinesJSON decodes the OCR lines from a model response. The response
// may be wrapped in markdown fences or prose, and may be either the
// {"lines": [...]} object or a bare array of lines.
func parseLinesJSON(text string) ([]extract.OCRLine, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	if objStart == -1 && arrStart == -1 {
		return nil, fmt.Errorf("no JSON found in response")
	}

	// a bare array comes first when it opens before any object
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		end := strings.LastIndex(text, "]")
		if end < arrStart {
			return nil, fmt.Errorf("invalid JSON array in response")
		}
		var lines []extract.OCRLine
		if err := json.Unmarshal([]byte(text[arrStart:end+1]), &lines); err != nil {
			return nil, fmt.Errorf("unmarshaling json: %w", err)
		}
		return nonNil(lines), nil
	}

	end := strings.LastIndex(text, "}")
	if end < objStart {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	var resp struct {
		Lines []extract.OCRLine `json:"lines"`
	}
	if err := json.Unmarshal([]byte(text[objStart:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return nonNil(resp.Lines), nil
}

func nonNil(lines []extract.OCRLine) []extract.OCRLine {
	if lines == nil {
		return []extract.OCRLine{}
	}
	return lines
}
