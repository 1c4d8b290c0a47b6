package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountMinorUnits converts an extracted money token such as "1,234.50" into
// integer minor units (paise, cents), rounding half away from zero.
func AmountMinorUnits(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(reAmountJunk.ReplaceAllString(raw, ""), ",", "")
	if countDigits(cleaned) == 0 {
		return 0, fmt.Errorf("no digits in amount %q", raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
