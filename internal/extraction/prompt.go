package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// deltaPrompt is the system prompt shared by the LLM extractors.
const deltaPrompt = `You compare an auto-generated contractor quote with the version the contractor actually sent.

For every line item whose price changed, was added, or was removed, report one correction.
Ignore changes to wording, ordering, or formatting that do not change a price.

Respond with a JSON array. Each element has:
- "item_type": the kind of work or material, in a few words
- "original_value": the generated price in dollars (0 if the item was added)
- "corrected_value": the price the contractor sent in dollars (0 if removed)
- "reason": why the contractor changed it, from their notes; empty if unknown
- "learning": one sentence a pricing assistant should follow next time, naming the item and a concrete amount or percentage

Respond ONLY with the JSON array, no additional text. Respond with [] when no price changed.`

// renderDiff formats the user message for a diff.
func renderDiff(diff QuoteDiff) (string, error) {
	payload := struct {
		Category       string     `json:"category"`
		JobDescription string     `json:"job_description,omitempty"`
		EditNote       string     `json:"edit_note,omitempty"`
		Generated      []LineItem `json:"generated"`
		Sent           []LineItem `json:"sent"`
	}{
		Category:       diff.Category,
		JobDescription: diff.JobDescription,
		EditNote:       diff.EditNote,
		Generated:      diff.Original,
		Sent:           diff.Corrected,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal diff: %w", err)
	}
	return "Quote diff:\n" + string(data), nil
}

// parseDeltasJSON parses a model response into deltas. Code fences are
// stripped and a single object is accepted in place of an array. Elements
// without an item type are dropped.
func parseDeltasJSON(content string) ([]Delta, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []Delta
	if strings.HasPrefix(content, "{") {
		var one Delta
		if err := json.Unmarshal([]byte(content), &one); err != nil {
			return nil, fmt.Errorf("failed to parse deltas: %w", err)
		}
		raw = []Delta{one}
	} else if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse deltas: %w", err)
	}

	out := raw[:0]
	for _, d := range raw {
		d.ItemType = strings.TrimSpace(d.ItemType)
		if d.ItemType == "" {
			continue
		}
		d.Reason = strings.TrimSpace(d.Reason)
		d.Learning = strings.TrimSpace(d.Learning)
		out = append(out, d)
	}
	return out, nil
}
