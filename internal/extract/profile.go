package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the locale-specific vocabulary the detectors are built from.
// Scoring logic never hardcodes a keyword; it only reads a Profile.
type Profile struct {
	Name string `yaml:"name"`

	// Money heuristic
	TotalKeywords     []string `yaml:"total_keywords"`
	DeductionKeywords []string `yaml:"deduction_keywords"`

	// Amount selector: labels that mark the payable line. TotalLabels must
	// end the line (optionally followed by ":" or "-"); InlineTotalLabels may
	// be followed by the figure on the same line.
	TotalLabels       []string `yaml:"total_labels"`
	InlineTotalLabels []string `yaml:"inline_total_labels"`

	MerchantStopwords []string `yaml:"merchant_stopwords"`

	// Payment heuristic
	WalletKeywords      []string `yaml:"wallet_keywords"`
	CardKeywords        []string `yaml:"card_keywords"`
	CardBrands          []string `yaml:"card_brands"`
	CashKeywords        []string `yaml:"cash_keywords"`
	PaymentPhrases      []string `yaml:"payment_phrases"`
	InvoicePrefixes     []string `yaml:"invoice_prefixes"`
	PaymentConfirmWords []string `yaml:"payment_confirm_words"`

	DateLabels []string `yaml:"date_labels"`
	// Months holds twelve abbreviations, January first. Month names on the
	// receipt match by prefix.
	Months []string `yaml:"months"`
	// CenturyBase is added to two-digit years
	CenturyBase int `yaml:"century_base"`

	HeaderLines           int `yaml:"header_lines"`
	FooterLines           int `yaml:"footer_lines"`
	MerchantFallbackLines int `yaml:"merchant_fallback_lines"`
}

// DefaultProfile returns the profile tuned for Indian retail receipts
func DefaultProfile() *Profile {
	return &Profile{
		Name:              "in-retail",
		TotalKeywords:     []string{"total", "grand total", "net payable", "amount paid", "balance", "amount"},
		DeductionKeywords: []string{"subtotal", "tax", "gst", "cgst", "sgst", "vat", "service charge"},
		TotalLabels:       []string{"total", "grand total", "net payable", "amount paid", "amount"},
		InlineTotalLabels: []string{"total"},
		MerchantStopwords: []string{"invoice", "receipt", "tax", "gst", "bill", "cash memo", "token"},
		WalletKeywords:    []string{"upi", "gpay", "google pay", "phonepe", "paytm", "amazon pay", "netbanking", "net banking"},
		CardKeywords:      []string{"visa", "mastercard", "rupay", "amex", "maestro", "debit card", "credit card"},
		CardBrands:        []string{"visa", "mastercard", "rupay", "amex", "maestro"},
		CashKeywords:      []string{"cash"},
		PaymentPhrases:    []string{"paid via", "paid using", "payment mode", "mode:", "txn type", "transaction"},
		InvoicePrefixes:   []string{"inv", "ino"},
		PaymentConfirmWords: []string{
			"paid", "card", "upi", "cash",
		},
		DateLabels:            []string{"date", "bill date", "invoice date", "inv date"},
		Months:                []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"},
		CenturyBase:           2000,
		HeaderLines:           6,
		FooterLines:           6,
		MerchantFallbackLines: 8,
	}
}

// ParseProfile decodes a YAML profile on top of the defaults, so a file only
// needs the fields it changes.
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadProfile reads a YAML profile from disk
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return ParseProfile(data)
}

// Validate checks the structural requirements the detectors rely on
func (p *Profile) Validate() error {
	if len(p.Months) != 12 {
		return fmt.Errorf("profile %q: expected 12 months, got %d", p.Name, len(p.Months))
	}
	for i, m := range p.Months {
		if m == "" {
			return fmt.Errorf("profile %q: month %d is empty", p.Name, i+1)
		}
	}
	if p.HeaderLines <= 0 || p.FooterLines <= 0 || p.MerchantFallbackLines <= 0 {
		return fmt.Errorf("profile %q: line windows must be positive", p.Name)
	}
	if p.CenturyBase < 0 {
		return fmt.Errorf("profile %q: century base must not be negative", p.Name)
	}
	return nil
}
