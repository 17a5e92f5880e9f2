package extraction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxReasonLength = 200

// DraftStatement renders a delta as a learning statement. The text names
// the item and the dollar amounts so it is actionable on its own; the
// reason is appended when present.
func DraftStatement(d Delta, category string) string {
	item := strings.TrimSpace(d.ItemType)
	if item == "" {
		item = "this item"
	}
	jobs := "jobs"
	if c := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(category)); c != "" {
		jobs = c + " jobs"
	}

	var text string
	switch {
	case d.OriginalValue == 0:
		text = fmt.Sprintf("When quoting %s, include %s at %s", jobs, item, formatMoney(d.CorrectedValue))
	case d.CorrectedValue == 0:
		text = fmt.Sprintf("When quoting %s, do not include %s (generated at %s)", jobs, item, formatMoney(d.OriginalValue))
	default:
		text = fmt.Sprintf("When quoting %s, charge %s for %s instead of %s (%+.0f%%)",
			jobs, formatMoney(d.CorrectedValue), item, formatMoney(d.OriginalValue), d.SignedMagnitude())
	}

	if reason := strings.TrimRight(strings.TrimSpace(d.Reason), "."); reason != "" {
		if utf8.RuneCountInString(reason) > maxReasonLength {
			reason = strings.TrimSpace(string([]rune(reason)[:maxReasonLength]))
		}
		text += " because " + lowerFirst(reason)
	}
	return text + "."
}

// formatMoney renders whole dollars without cents and with thousands separators.
func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := math.Floor(v)
	cents := math.Round((v - whole) * 100)
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if cents > 0 {
		return fmt.Sprintf("%s$%s.%02.0f", sign, b.String(), cents)
	}
	return sign + "$" + b.String()
}

func lowerFirst(s string) string {
	first, n := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	// Keep acronyms like "HOA" intact.
	if second, _ := utf8.DecodeRuneInString(s[n:]); n < len(s) &&
		unicode.ToUpper(first) == first && unicode.ToUpper(second) == second {
		return s
	}
	return string(unicode.ToLower(first)) + s[n:]
}
