package application

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// TaskInstruction closes a definition context and tells the classifier how
// to answer.
const TaskInstruction = "Classify the text below into one of the categories listed above.\n" +
	"Be concise and write only the category name."

// PreviousTextLine is appended when the dataset carries preceding text. The
// placeholder is filled per sample by the classifier.
const PreviousTextLine = "Previous text: {previous_text}"

// AssembleInput carries everything needed to render one context prompt.
type AssembleInput struct {
	Taxonomy    *domain.Taxonomy
	Sections    []domain.SectionKind
	Permutation *domain.LabelPermutation

	ExamplesPerLabel   int
	LabelType          string
	EmptyDefinition    bool
	AddTaskInstruction bool
	AddPreviousText    bool
	NoisyChannel       bool

	// Rng shuffles bullets and exemplars. It is shared with the driver so
	// consecutive runs see different orders.
	Rng *rand.Rand
}

// Section renders one guideline block for a permutation.
type Section interface {
	Kind() domain.SectionKind
	Render(in AssembleInput) (string, error)
}

// ContextAssembler turns a permutation and the guideline material into the
// context prompt handed to the classifier.
type ContextAssembler struct {
	sections map[domain.SectionKind]Section
}

// NewContextAssembler creates an assembler with the definition and examples
// sections registered.
func NewContextAssembler() *ContextAssembler {
	a := &ContextAssembler{sections: make(map[domain.SectionKind]Section)}
	a.Register(definitionSection{})
	a.Register(examplesSection{})
	return a
}

// Register adds or replaces the renderer for a section kind.
func (a *ContextAssembler) Register(s Section) {
	a.sections[s.Kind()] = s
}

// Assemble renders the requested sections in order and joins them with blank
// lines. It reports false when nothing was rendered, meaning the classifier
// should fall back to its default instruction.
func (a *ContextAssembler) Assemble(in AssembleInput) (string, bool, error) {
	if len(in.Sections) == 0 {
		return "", false, nil
	}
	if in.Taxonomy == nil {
		return "", false, fmt.Errorf("%w: no taxonomy", domain.ErrInvalidConfiguration)
	}

	parts := make([]string, 0, len(in.Sections)+2)
	hasDefinition := false
	for _, kind := range in.Sections {
		s, ok := a.sections[kind]
		if !ok {
			return "", false, domain.NewConfigurationError("sections",
				fmt.Errorf("%w: no renderer for section %q", domain.ErrInvalidConfiguration, kind))
		}
		text, err := s.Render(in)
		if err != nil {
			return "", false, err
		}
		if kind == domain.SectionDefinition {
			hasDefinition = true
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	if in.AddTaskInstruction && hasDefinition {
		parts = append(parts, TaskInstruction)
	}
	if in.AddPreviousText {
		parts = append(parts, PreviousTextLine)
	}

	prompt := strings.Join(parts, "\n\n")
	if strings.TrimSpace(prompt) == "" {
		return "", false, nil
	}
	return prompt, true, nil
}

type definitionSection struct{}

func (definitionSection) Kind() domain.SectionKind { return domain.SectionDefinition }

// Render writes one bullet per entry, shuffles them, then prepends the
// taxonomy header when task instructions are on.
func (definitionSection) Render(in AssembleInput) (string, error) {
	entries := in.Permutation.Entries()
	bullets := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if in.EmptyDefinition {
			bullets = append(bullets, "- "+string(e.Presented))
			continue
		}
		def, ok := in.Taxonomy.Definition(e.True)
		if !ok {
			return "", domain.NewConfigurationError(string(e.True), domain.ErrMissingDefinition)
		}
		bullets = append(bullets, fmt.Sprintf("- %s: %s", e.Presented, def))
	}

	shuffle(in.Rng, bullets)

	if in.AddTaskInstruction && in.Taxonomy.HeaderPrompt != "" {
		bullets = append([]string{in.Taxonomy.HeaderPrompt}, bullets...)
	}
	return strings.Join(bullets, "\n\n"), nil
}

type examplesSection struct{}

func (examplesSection) Kind() domain.SectionKind { return domain.SectionExamples }

// Render writes up to ExamplesPerLabel exemplars of each true label under
// its presented name. Labels without exemplars contribute nothing.
func (examplesSection) Render(in AssembleInput) (string, error) {
	var blocks []string
	for _, e := range in.Permutation.Entries() {
		src := in.Taxonomy.Examples[e.True]
		if len(src) == 0 {
			continue
		}
		texts := make([]string, len(src))
		copy(texts, src)
		shuffle(in.Rng, texts)
		if in.ExamplesPerLabel < len(texts) {
			texts = texts[:in.ExamplesPerLabel]
		}
		for _, x := range texts {
			if in.NoisyChannel {
				blocks = append(blocks, fmt.Sprintf("%s: %s", e.Presented, x))
			} else {
				blocks = append(blocks, fmt.Sprintf("Text: %s\n%s: %s", x, in.LabelType, e.Presented))
			}
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func shuffle(rng *rand.Rand, xs []string) {
	if rng == nil {
		return
	}
	rng.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}
