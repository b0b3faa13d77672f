package field

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// reDisallowed matches anything that is not a word character, whitespace
	// or one of the separators used by dates, amounts and identifiers.
	reDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s./,-]`)

	// reDate finds DD/MM/YYYY or DD/MM/YY. The four digit year is tried first.
	reDate = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4}|\d{2})`)

	// reCurrency is the shape of a well formed amount: integer part, comma, cents.
	reCurrency = regexp.MustCompile(`\d+,\d{2}`)
)

// Normalize converts a raw transcription into the canonical representation
// for t. It never fails: inputs that cannot be formatted are returned in their
// cleaned form.
//
//	Normalize("12345678901", CPF)     // "123.456.789-01"
//	Normalize("ref 05/07/23 x", Date) // "05/07/2023"
//	Normalize("150000", Currency)     // "1500,00"
func Normalize(text string, t Type) string {
	if text == "" {
		return ""
	}
	// Compose first: the filter below would drop combining accents.
	text = reDisallowed.ReplaceAllString(norm.NFC.String(text), "")

	switch t {
	case CPF:
		return normalizeCPF(text)
	case Date:
		return normalizeDate(text)
	case Currency:
		return normalizeCurrency(text)
	case Number:
		return keep(text, func(r rune) bool { return isDigit(r) || r == '.' })
	default:
		return strings.Join(strings.Fields(text), " ")
	}
}

func normalizeCPF(text string) string {
	digits := keep(text, isDigit)
	if len(digits) != 11 {
		return digits
	}
	return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}

func normalizeDate(text string) string {
	m := reDate.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	return m[1] + "/" + m[2] + "/" + year
}

// normalizeCurrency treats the last two characters as cents when the
// recognizer dropped the decimal comma. Inputs of one or two characters end
// up as ",5" or ",12"; see DESIGN.md for why this is left as is.
func normalizeCurrency(text string) string {
	amount := keep(text, func(r rune) bool { return isDigit(r) || r == ',' || r == '.' })
	if amount == "" || strings.Contains(amount, ",") {
		return amount
	}
	if len(amount) <= 2 {
		return "," + amount
	}
	cut := len(amount) - 2
	return amount[:cut] + "," + amount[cut:]
}

// keep returns the runes of s for which ok returns true.
func keep(s string, ok func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isDigit accepts ASCII digits only so that byte offsets stay valid for the
// CPF and currency slicing above.
func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// CountDigits returns the number of decimal digit characters in s.
func CountDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
