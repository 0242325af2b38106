package application

import (
	"fmt"
	"strings"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// RunID names one classifier run:
// {model}-{domain}-{concept}_{noise-}{sections}{_i_of_n}. The count suffix
// is added when more than one permutation is requested, and always for the
// factual baseline (index 0) so it never shares an output directory with the
// sampled run that follows it. Slashes in the model name are replaced so the
// ID is a single path element.
func RunID(
	model, domainName, concept string,
	sections []domain.SectionKind,
	policy domain.NoisePolicy,
	total, index int,
) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(model, "/", "_"))
	b.WriteString("-")
	b.WriteString(domainName)
	b.WriteString("-")
	b.WriteString(concept)
	b.WriteString("_")
	if tag := policy.RunTag(); tag != "" {
		b.WriteString(tag)
		b.WriteString("-")
	}
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = string(s)
	}
	b.WriteString(strings.Join(names, "-"))
	if total > 1 || index == 0 {
		fmt.Fprintf(&b, "_%d_of_%d", index, total)
	}
	return b.String()
}
