package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var reAmountJunk = regexp.MustCompile(`[^\d.\-,]`)

func (m *matchers) isTotalLine(line string) bool {
	return (m.totalLabel != nil && m.totalLabel.MatchString(line)) ||
		(m.inlineTotal != nil && m.inlineTotal.MatchString(line))
}

// selectAmount prefers the last figure on the first total-labeled line.
// Otherwise it takes the latest-appearing money candidate, not the largest:
// tax and service lines can exceed what was actually paid.
func (m *matchers) selectAmount(lines []string, money []Candidate) (Candidate, bool) {
	for i, line := range lines {
		if !m.isTotalLine(line) {
			continue
		}
		if tokens := reNumberToken.FindAllString(line, -1); len(tokens) > 0 {
			return Candidate{Text: tokens[len(tokens)-1], Index: i, Score: amountTotalLine}, true
		}
		break
	}

	pool := make([]Candidate, 0, len(money))
	for _, c := range money {
		if !looksLikeGST(c.Text) && !looksLikePhone(c.Text) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return Candidate{}, false
	}
	// ascending by line, then score; the last element wins
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Index != pool[j].Index {
			return pool[i].Index < pool[j].Index
		}
		return pool[i].Score < pool[j].Score
	})
	return pool[len(pool)-1], true
}

// parseAmount reads a money token as a number. Negative or non-finite values
// count as no amount.
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(reAmountJunk.ReplaceAllString(raw, ""), ",", "")
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, false
	}
	return n, true
}

// best returns the highest scoring candidate, earliest line first on ties
func best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Index < sorted[j].Index
	})
	return sorted[0], true
}

// selectDate resolves the best date candidate. With no usable candidate it
// looks for a bare date label and parses the line below it.
func (m *matchers) selectDate(lines []string, dates []Candidate) (LocalTime, float64, bool) {
	if cand, ok := best(dates); ok {
		if t, ok := m.parseDate(cand.Text); ok {
			return t, math.Min(1, cand.Score), true
		}
		if cand.Index < len(lines) {
			if t, ok := m.parseDate(lines[cand.Index]); ok {
				return t, math.Min(1, cand.Score), true
			}
		}
	}

	if m.dateLabelOnly == nil {
		return LocalTime{}, 0, false
	}
	for i := 0; i+1 < len(lines); i++ {
		if !m.dateLabelOnly.MatchString(lines[i]) {
			continue
		}
		if t, ok := m.parseDate(lines[i+1]); ok {
			return t, dateLabelOnlyHit, true
		}
	}
	return LocalTime{}, 0, false
}

// selectMerchant falls back to the first name-like line near the top when
// the header heuristic found nothing.
func (m *matchers) selectMerchant(lines []string, merchants []Candidate) (Candidate, bool) {
	if cand, ok := best(merchants); ok {
		return cand, true
	}
	limit := min(m.profile.MerchantFallbackLines, len(lines))
	for i := 0; i < limit; i++ {
		if looksLikeName(lines[i]) {
			return Candidate{Text: lines[i], Index: i, Score: merchantFallback}, true
		}
	}
	return Candidate{}, false
}

// Payment method labels
const (
	PaymentUPI   = "UPI"
	PaymentCash  = "CASH"
	PaymentOther = "OTHER"
)

// classifyPayment maps the winning payment line to a normalized label
func (m *matchers) classifyPayment(cand Candidate) (string, float64) {
	switch {
	case reUPIID.MatchString(cand.Text):
		return PaymentUPI, upiConfidence
	case m.cardBrand.Match(cand.Text):
		return cases.Upper(language.Und).String(m.cardBrand.Find(cand.Text)), cardConfidence
	case m.cash.Match(cand.Text):
		return PaymentCash, cashConfidence
	default:
		return PaymentOther, math.Min(1, cand.Score)
	}
}
