package rules

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

var errNoDigits = errors.New("no digits")

// ParseAmount converts a displayed monetary or numeric value to a float.
// Leading and trailing currency codes, symbols and unit words are dropped,
// as are thousands separators, NBSP and whitespace inside the number:
// "$1,234.50" -> 1234.5, "1,000.00 €" -> 1000, "-12.00" -> -12.
// A letter between digits ("1.5e3", "2 of 3") is an error.
func ParseAmount(text string) (float64, error) {
	core := strings.TrimFunc(text, isAffix)

	var b strings.Builder
	digits := 0
	for _, r := range core {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteRune(r)
		case r == ',' || unicode.IsSpace(r): // covers NBSP and narrow NBSP
		case unicode.Is(unicode.Sc, r):
		default:
			return 0, &models.FieldParseError{Text: text, Cause: errors.New("unexpected character " + strconv.QuoteRune(r))}
		}
	}
	if digits == 0 {
		return 0, &models.FieldParseError{Text: text, Cause: errNoDigits}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, &models.FieldParseError{Text: text, Cause: err}
	}
	return v, nil
}

func isAffix(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r)
}

// SplitCurrency splits a total such as "USD 99.00" or "1,000.00 €" into
// currency and amount. Of two whitespace-separated parts, the one ParseAmount
// accepts is the amount. Any other text is returned whole as the amount.
func SplitCurrency(text string) (currency, amount string) {
	text = strings.TrimSpace(text)
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return "", text
	}
	if _, err := ParseAmount(parts[1]); err == nil {
		return parts[0], parts[1]
	}
	if _, err := ParseAmount(parts[0]); err == nil {
		return parts[1], parts[0]
	}
	return parts[0], parts[1]
}

func parseField(field, text string) (float64, error) {
	v, err := ParseAmount(text)
	if err != nil {
		var fpe *models.FieldParseError
		if errors.As(err, &fpe) {
			fpe.Field = field
		}
		return 0, err
	}
	return v, nil
}
