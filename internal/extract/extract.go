// Package extract infers expense fields from the OCR lines of a photographed
// receipt: total amount, date, merchant, payment method and a category hint.
//
// Extraction is a pure function of its input. Every field comes with a
// confidence in [0,1]; a missing field is nil with confidence 0, never an error.
package extract

import "math"

// Debug exposes every candidate the detectors produced, in line order
type Debug struct {
	Lines              []string    `json:"lines"`
	MoneyCandidates    []Candidate `json:"moneyCandidates"`
	DateCandidates     []Candidate `json:"dateCandidates"`
	MerchantCandidates []Candidate `json:"merchantCandidates"`
	PaymentCandidates  []Candidate `json:"paymentCandidates"`
}

// ParseResult is the outcome of one extraction
type ParseResult struct {
	Amount           *float64 `json:"amount"`
	AmountRaw        *string  `json:"amountRaw"`
	AmountConfidence float64  `json:"amountConfidence"`

	// Date and DateISO carry the same local reading, 2006-01-02T15:04:05
	Date           *string `json:"date"`
	DateISO        *string `json:"dateISO"`
	DateConfidence float64 `json:"dateConfidence"`

	Merchant           *string `json:"merchant"`
	MerchantConfidence float64 `json:"merchantConfidence"`

	PaymentMethod     *string `json:"paymentMethod"`
	PaymentConfidence float64 `json:"paymentConfidence"`

	// CategoryKeywords holds the top category match, or nothing
	CategoryKeywords   []string `json:"categoryKeywords"`
	CategoryConfidence float64  `json:"categoryConfidence"`

	Debug Debug `json:"debug"`
}

// Extractor runs the detectors of one locale profile. It holds no per-call
// state and is safe for concurrent use.
type Extractor struct {
	m *matchers
}

// Option configures an Extractor
type Option func(*Extractor)

// WithProfile swaps the default Indian retail vocabulary for p
func WithProfile(p *Profile) Option {
	return func(e *Extractor) {
		if p != nil {
			e.m = compile(p)
		}
	}
}

// New creates an Extractor using the default profile unless overridden
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.m == nil {
		e.m = compile(DefaultProfile())
	}
	return e
}

var defaultExtractor = New()

// ParseReceipt extracts fields with the default profile
func ParseReceipt(lines []OCRLine, categories []string) ParseResult {
	return defaultExtractor.ParseReceipt(lines, categories)
}

// Profile returns the vocabulary the extractor was built from
func (e *Extractor) Profile() *Profile {
	return e.m.profile
}

// ParseReceipt extracts fields from lines ordered top to bottom. categories is
// the caller's taxonomy; only a name from it is ever reported.
func (e *Extractor) ParseReceipt(lines []OCRLine, categories []string) ParseResult {
	m := e.m
	normalized := normalizeLines(lines)
	c := m.collect(normalized)

	res := ParseResult{
		CategoryKeywords: []string{},
		Debug: Debug{
			Lines:              normalized,
			MoneyCandidates:    c.money,
			DateCandidates:     c.date,
			MerchantCandidates: c.merchant,
			PaymentCandidates:  c.payment,
		},
	}

	if cand, ok := m.selectAmount(normalized, c.money); ok {
		if n, ok := parseAmount(cand.Text); ok {
			raw := cand.Text
			res.Amount = &n
			res.AmountRaw = &raw
			res.AmountConfidence = math.Min(1, cand.Score)
		}
	}

	if t, conf, ok := m.selectDate(normalized, c.date); ok {
		s := t.String()
		iso := s
		res.Date = &s
		res.DateISO = &iso
		res.DateConfidence = conf
	}

	if cand, ok := m.selectMerchant(normalized, c.merchant); ok {
		name := cand.Text
		res.Merchant = &name
		res.MerchantConfidence = math.Min(1, cand.Score)
	}

	if cand, ok := best(c.payment); ok {
		method, conf := m.classifyPayment(cand)
		res.PaymentMethod = &method
		res.PaymentConfidence = conf
	}

	if cat, score, ok := matchCategory(normalized, categories); ok {
		res.CategoryKeywords = []string{cat}
		res.CategoryConfidence = score
	}

	return res
}
