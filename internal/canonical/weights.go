package canonical

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseWeight parses an issuer-reported weight string into a float. It
// tolerates percent signs, surrounding whitespace, thousands separators
// ("1,234.56"), and locale decimal commas ("8,1"). The returned value keeps
// the source's scale; fraction-vs-percent detection happens over the whole
// column in Canonicalize, not per cell.
func ParseWeight(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty weight")
	}

	// Parenthesized negatives: "(0.12)" -> "-0.12"
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}

	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		// Both present: commas are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case strings.Contains(cleaned, ","):
		// Comma only: a single comma followed by 1-2 digits is a locale
		// decimal comma ("8,1"); anything else ("1,234") is thousands.
		if isDecimalComma(cleaned) {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	w, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable weight %q", s)
	}
	return w, nil
}

func isDecimalComma(s string) bool {
	if strings.Count(s, ",") != 1 {
		return false
	}
	frac := s[strings.Index(s, ",")+1:]
	return len(frac) >= 1 && len(frac) <= 2
}

// CleanTicker normalizes an issuer-reported ticker: uppercase, trimmed, with
// the currency and unit-class suffixes some issuers append (" USD", ".UN")
// stripped.
func CleanTicker(s string) string {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, " USD")
	t = strings.ReplaceAll(t, ".UN", "")
	return strings.TrimSpace(t)
}
