package extract

import (
	"encoding/json"
	"strings"
	"unicode"
)

// BBox is the position of a recognized line on the receipt image
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// OCRLine is one line of recognized text, top to bottom as printed.
// The bounding box is carried through but no detector reads it yet.
type OCRLine struct {
	Text string `json:"text"`
	BBox *BBox  `json:"bbox,omitempty"`
}

// Line wraps a plain string as an OCRLine
func Line(s string) OCRLine {
	return OCRLine{Text: s}
}

// Lines wraps plain strings as OCRLines
func Lines(ss ...string) []OCRLine {
	out := make([]OCRLine, len(ss))
	for i, s := range ss {
		out[i] = Line(s)
	}
	return out
}

// UnmarshalJSON accepts either a bare string or a {"text","bbox"} object.
// Anything else decodes to an empty line instead of failing the whole batch.
func (l *OCRLine) UnmarshalJSON(data []byte) error {
	*l = OCRLine{}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.Text = s
		return nil
	}

	var obj struct {
		Text json.RawMessage `json:"text"`
		BBox *BBox           `json:"bbox"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	if err := json.Unmarshal(obj.Text, &s); err == nil {
		l.Text = s
	}
	l.BBox = obj.BBox
	return nil
}

// isLineSpace reports whitespace the way OCR output needs it: unicode spaces
// (NBSP included) plus the byte order mark some engines leave behind.
func isLineSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// NormalizeLine turns non-breaking spaces into spaces, collapses whitespace
// runs to a single space and trims both ends. It is idempotent.
func NormalizeLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, isLineSpace), " ")
}

// normalizeLines normalizes every line and drops the ones left empty
func normalizeLines(lines []OCRLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if n := NormalizeLine(l.Text); n != "" {
			out = append(out, n)
		}
	}
	return out
}
