package confidence

import (
	"fmt"
	"strings"
)

var tierGuidance = map[Tier]string{
	TierHigh: "Pricing for %s is well established (confidence %.0f%%). " +
		"Apply the learned rules directly and keep line items consistent with past accepted quotes.",
	TierMedium: "Pricing for %s is fairly reliable (confidence %.0f%%). " +
		"Follow the learned rules, and flag line items that fall outside recent accepted totals for review.",
	TierLow: "Pricing for %s is still uncertain (confidence %.0f%%). " +
		"Use the learned rules as hints, stay close to standard market rates, and mark the quote for review.",
	TierLearning: "Pricing for %s is still being learned (confidence %.0f%%). " +
		"Rely on standard market rates and treat any learned rules as tentative.",
}

// PromptInjection renders guidance for a quote-generation prompt from pc.
// Warnings are appended as a bulleted list.
func PromptInjection(pc PricingConfidence, categoryName string) string {
	if categoryName == "" {
		categoryName = "this category"
	}
	tmpl, ok := tierGuidance[pc.Tier]
	if !ok {
		tmpl = tierGuidance[TierLearning]
	}

	var b strings.Builder
	fmt.Fprintf(&b, tmpl, categoryName, pc.Overall*100)
	if len(pc.Warnings) > 0 {
		b.WriteString("\nCautions:")
		for _, w := range pc.Warnings {
			b.WriteString("\n- ")
			b.WriteString(w)
		}
	}
	return b.String()
}
