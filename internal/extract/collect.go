package extract

// Candidate is a scored, provisional value for one field
type Candidate struct {
	Text  string  `json:"text"`
	Index int     `json:"idx"`
	Score float64 `json:"score"`
}

// candidates holds one list per detector. A line may feed several lists.
type candidates struct {
	money    []Candidate
	date     []Candidate
	merchant []Candidate
	payment  []Candidate
}

// collect runs every detector over every line once, top to bottom
func (m *matchers) collect(lines []string) candidates {
	c := candidates{
		money:    []Candidate{},
		date:     []Candidate{},
		merchant: []Candidate{},
		payment:  []Candidate{},
	}
	for i, line := range lines {
		if cand, ok := m.merchantCandidate(line, i); ok {
			c.merchant = append(c.merchant, cand)
		}
		c.money = append(c.money, m.moneyCandidates(line, i, len(lines))...)
		if cand, ok := m.paymentCandidate(line, i); ok {
			c.payment = append(c.payment, cand)
		}
		if cand, ok := m.dateCandidate(lines, i); ok {
			c.date = append(c.date, cand)
		}
	}
	return c
}

// merchantCandidate accepts name-like header lines; the closer to the top,
// the higher the score.
func (m *matchers) merchantCandidate(line string, i int) (Candidate, bool) {
	header := m.profile.HeaderLines
	if i >= header || !looksLikeName(line) || m.merchantStop.Match(line) {
		return Candidate{}, false
	}
	return Candidate{
		Text:  line,
		Index: i,
		Score: merchantBase + float64(header-i)*merchantStep,
	}, true
}

// moneyCandidates emits one candidate per numeric token on the line
func (m *matchers) moneyCandidates(line string, i, n int) []Candidate {
	tokens := reNumberToken.FindAllString(line, -1)
	if len(tokens) == 0 {
		return nil
	}

	score := moneyBase
	if m.total.Match(line) {
		score += moneyTotalBonus
	}
	if m.deduction.Match(line) {
		score -= moneyDeductionPen
	}
	if i >= n-m.profile.FooterLines {
		score += moneyFooterBonus
	}

	out := make([]Candidate, len(tokens))
	for k, tok := range tokens {
		out[k] = Candidate{Text: tok, Index: i, Score: score}
	}
	return out
}

// paymentCandidate accepts lines naming a payment instrument or mode.
// Invoice-number lines are skipped unless they also confirm a payment.
func (m *matchers) paymentCandidate(line string, i int) (Candidate, bool) {
	if !m.wallet.Match(line) && !m.card.Match(line) && !m.cash.Match(line) &&
		!m.phrase.Match(line) && !reEmailLike.MatchString(line) {
		return Candidate{}, false
	}
	if m.invoice != nil && m.invoice.MatchString(line) && !m.confirm.Match(line) {
		return Candidate{}, false
	}

	score := paymentBase
	switch {
	case m.wallet.Match(line):
		score = paymentWallet
	case m.cardBrand.Match(line):
		score = paymentCard
	}
	return Candidate{Text: line, Index: i, Score: score}, true
}

// dateCandidate reads a labeled date from the rest of the line, or from the
// next line when the label stands alone. Unlabeled lines are tried as dates
// directly, with a bonus near the header.
func (m *matchers) dateCandidate(lines []string, i int) (Candidate, bool) {
	line := lines[i]

	if m.dateLabel != nil {
		if g := m.dateLabel.FindStringSubmatch(line); g != nil {
			rest := NormalizeLine(g[1])
			if rest != "" {
				if _, ok := m.parseDate(rest); ok {
					return Candidate{Text: rest, Index: i, Score: dateLabelInline}, true
				}
				return Candidate{}, false
			}
			if i+1 < len(lines) {
				if _, ok := m.parseDate(lines[i+1]); ok {
					return Candidate{Text: lines[i+1], Index: i + 1, Score: dateLabelNext}, true
				}
			}
			return Candidate{}, false
		}
	}

	if _, ok := m.parseDate(line); !ok {
		return Candidate{}, false
	}
	score := dateFreeForm
	if i < m.profile.HeaderLines {
		score += dateHeaderBonus
	}
	return Candidate{Text: line, Index: i, Score: score}, true
}
