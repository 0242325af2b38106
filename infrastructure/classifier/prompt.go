package classifier

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// PreviousTextPlaceholder is replaced by the sample's preceding text.
const PreviousTextPlaceholder = "{previous_text}"

// ZeroShotInstruction opens the prompt when a run has no guideline context.
const ZeroShotInstruction = "Classify the text below into one of the following categories."

// BuildPrompt renders the completion prompt for one sample. A run with a
// context prompt uses it verbatim; otherwise the presented labels are listed
// in a zero-shot instruction.
func BuildPrompt(req ports.ClassificationRequest, sample ports.Sample) string {
	var b strings.Builder
	if req.Context != nil {
		b.WriteString(strings.ReplaceAll(*req.Context, PreviousTextPlaceholder, sample.PreviousText))
	} else {
		names := make([]string, len(req.LabelOrder))
		for i, l := range req.LabelOrder {
			names[i] = string(l)
		}
		b.WriteString(ZeroShotInstruction)
		b.WriteString("\nCategories: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\nBe concise and write only the category name.")
	}

	labelType := req.LabelType
	if labelType == "" {
		labelType = "Category"
	}
	b.WriteString("\n\nText: ")
	b.WriteString(sample.Source)
	b.WriteString("\n")
	b.WriteString(labelType)
	b.WriteString(":")
	return b.String()
}

// ParseLabel maps a free-text response onto one of the offered labels. It
// tries, in order, a case-insensitive exact match, the longest label the
// response starts with, and the label mentioned earliest in the response.
func ParseLabel(response string, options []domain.Label) (domain.Label, bool) {
	fold := cases.Fold()
	answer := fold.String(cleanResponse(response))
	if answer == "" {
		return "", false
	}

	folded := make([]string, len(options))
	for i, l := range options {
		folded[i] = fold.String(string(l))
	}

	for i, f := range folded {
		if f == answer {
			return options[i], true
		}
	}

	best := -1
	for i, f := range folded {
		if f != "" && strings.HasPrefix(answer, f) && (best < 0 || len(f) > len(folded[best])) {
			best = i
		}
	}
	if best >= 0 {
		return options[best], true
	}

	bestPos := -1
	for i, f := range folded {
		if f == "" {
			continue
		}
		pos := strings.Index(answer, f)
		if pos < 0 {
			continue
		}
		if best < 0 || pos < bestPos || (pos == bestPos && len(f) > len(folded[best])) {
			best, bestPos = i, pos
		}
	}
	if best >= 0 {
		return options[best], true
	}
	return "", false
}

// cleanResponse keeps the first non-empty line and strips quoting and
// trailing punctuation.
func cleanResponse(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(line, "\"'`*")
		return strings.TrimSpace(strings.TrimRight(line, ".!"))
	}
	return ""
}
