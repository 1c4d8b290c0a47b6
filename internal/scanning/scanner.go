package scanning

import "github.com/zombor/expense-scanner/internal/extract"

// Scanner recognizes the printed text of a receipt image or PDF
type Scanner interface {
	// RecognizeLines returns the receipt's text lines, top to bottom as printed
	RecognizeLines(imageData []byte, contentType string) ([]extract.OCRLine, error)
	// Close closes the scanner and releases resources
	Close() error
}

// recognizePrompt is shared by every vision model backend. The models act as
// the OCR engine only; field extraction happens in package extract.
const recognizePrompt = `You are an OCR engine reading a photographed shop receipt or invoice.

Transcribe every printed line of text exactly as it appears, from the top of the receipt to the bottom.

Rules:
- One entry per printed line, in reading order
- Copy text verbatim: keep numbers, currency symbols, punctuation and spelling errors as printed
- Do not summarize, translate, correct or interpret anything
- Skip lines that are completely unreadable
- When you can estimate it, include the bounding box of the line in image pixels

Return ONLY valid JSON in this exact format:
{
  "lines": [
    {"text": "first line", "bbox": {"x": 0, "y": 0, "w": 0, "h": 0}},
    {"text": "second line"}
  ]
}

Do not include any text before or after the JSON. Do not use markdown code blocks.`
