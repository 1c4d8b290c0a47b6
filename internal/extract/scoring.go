package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Heuristic weights. Tests pin these values, so changing one is a behavior change.
const (
	// merchant: line i of the header scores merchantBase + (HeaderLines-i)*merchantStep
	merchantBase     = 0.7
	merchantStep     = 0.04
	merchantFallback = 0.5
	// lines whose share of digits reaches this are not names
	maxDigitRatio = 0.35

	moneyBase         = 0.6
	moneyTotalBonus   = 0.25
	moneyDeductionPen = 0.15
	moneyFooterBonus  = 0.10
	amountTotalLine   = 0.98

	paymentBase   = 0.8
	paymentWallet = 0.95
	paymentCard   = 0.90

	dateLabelInline  = 0.98
	dateLabelNext    = 0.90
	dateFreeForm     = 0.85
	dateHeaderBonus  = 0.10
	dateLabelOnlyHit = 0.5

	upiConfidence  = 0.95
	cardConfidence = 0.90
	cashConfidence = 0.85

	// phone numbers carry between these many digits
	phoneMinDigits = 6
	phoneMaxDigits = 15
)

var (
	// a thousands-grouped figure or a plain run of digits, with optional decimals
	reNumberToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	rePhonePunct  = regexp.MustCompile(`[\d\-\s()+]`)
	reGST         = regexp.MustCompile(`(?i)\bGSTIN\b|\bGST\b|[0-9A-Z]{2}[0-9A-Z]{10}[0-9A-Z]{3}`)
	reEmailLike   = regexp.MustCompile(`[A-Za-z0-9.\-_]+@[A-Za-z]{2,}`)
	reUPIID       = regexp.MustCompile(`[A-Za-z0-9.\-_]{2,}@[A-Za-z]{2,}`)
	reNonWord     = regexp.MustCompile(`\W+`)
)

// keywordSet matches any of a list of words or phrases, case-insensitively,
// honoring word boundaries where the keyword starts or ends with a word character.
type keywordSet struct {
	re *regexp.Regexp
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// alternation renders words as a non-capturing regex group. Inner spaces
// become sep. Empty when no usable word is given.
func alternation(words []string, sep string) string {
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	// longer phrases first so "grand total" wins over "total" at the same offset
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })

	parts := make([]string, len(cleaned))
	for i, w := range cleaned {
		fields := strings.Fields(w)
		for j := range fields {
			fields[j] = regexp.QuoteMeta(fields[j])
		}
		pat := strings.Join(fields, sep)
		if isWordByte(w[0]) {
			pat = `\b` + pat
		}
		if isWordByte(w[len(w)-1]) {
			pat += `\b`
		}
		parts[i] = pat
	}
	return `(?:` + strings.Join(parts, "|") + `)`
}

func quoteAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, regexp.QuoteMeta(w))
		}
	}
	return out
}

func newKeywordSet(words []string) keywordSet {
	alt := alternation(words, " ")
	if alt == "" {
		return keywordSet{}
	}
	return keywordSet{re: regexp.MustCompile(`(?i)` + alt)}
}

func (k keywordSet) Match(s string) bool {
	return k.re != nil && k.re.MatchString(s)
}

// Find returns the first keyword occurrence as printed on the line
func (k keywordSet) Find(s string) string {
	if k.re == nil {
		return ""
	}
	return k.re.FindString(s)
}

// matchers is a Profile compiled into regular expressions
type matchers struct {
	profile *Profile

	total        keywordSet
	deduction    keywordSet
	merchantStop keywordSet
	wallet       keywordSet
	card         keywordSet
	cardBrand    keywordSet
	cash         keywordSet
	phrase       keywordSet
	confirm      keywordSet

	invoice       *regexp.Regexp
	dateLabel     *regexp.Regexp // group 1 is the rest of the line
	dateLabelOnly *regexp.Regexp
	totalLabel    *regexp.Regexp
	inlineTotal   *regexp.Regexp
}

func compile(p *Profile) *matchers {
	m := &matchers{
		profile:      p,
		total:        newKeywordSet(p.TotalKeywords),
		deduction:    newKeywordSet(p.DeductionKeywords),
		merchantStop: newKeywordSet(p.MerchantStopwords),
		wallet:       newKeywordSet(p.WalletKeywords),
		card:         newKeywordSet(p.CardKeywords),
		cardBrand:    newKeywordSet(p.CardBrands),
		cash:         newKeywordSet(p.CashKeywords),
		phrase:       newKeywordSet(p.PaymentPhrases),
		confirm:      newKeywordSet(p.PaymentConfirmWords),
	}

	if prefixes := quoteAll(p.InvoicePrefixes); len(prefixes) > 0 {
		m.invoice = regexp.MustCompile(`(?i)\b(?:` + strings.Join(prefixes, "|") + `)\w*`)
	}
	if alt := alternation(p.DateLabels, `\s*`); alt != "" {
		m.dateLabel = regexp.MustCompile(`(?i)` + alt + `[:\s\-]+(.*)$`)
		m.dateLabelOnly = regexp.MustCompile(`(?i)^\s*` + alt + `\s*[:\-\s]*$`)
	}
	if alt := alternation(p.TotalLabels, `\s*`); alt != "" {
		m.totalLabel = regexp.MustCompile(`(?i)` + alt + `[:\s\-]*$`)
	}
	if alt := alternation(p.InlineTotalLabels, `\s*`); alt != "" {
		m.inlineTotal = regexp.MustCompile(`(?i)` + alt + `[:\s]`)
	}
	return m
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// digitRatio is the share of digits among the non-space characters
func digitRatio(s string) float64 {
	nonSpace := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			nonSpace++
		}
	}
	return float64(countDigits(s)) / float64(max(1, nonSpace))
}

func looksLikePhone(s string) bool {
	d := countDigits(s)
	return d >= phoneMinDigits && d <= phoneMaxDigits && rePhonePunct.MatchString(s)
}

func looksLikeGST(s string) bool {
	return reGST.MatchString(s)
}

// looksLikeName is shared by the merchant heuristic and its fallback
func looksLikeName(s string) bool {
	return hasLetter(s) && !looksLikePhone(s) && !looksLikeGST(s) && digitRatio(s) < maxDigitRatio
}
