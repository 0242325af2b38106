package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

func contextTaxonomy() *domain.Taxonomy {
	return &domain.Taxonomy{
		Domain:  "financial",
		Concept: "capital",
		Labels:  []domain.Label{"A", "B"},
		Definitions: map[domain.Label]string{
			"A": "alpha definition",
			"B": "beta definition",
		},
		Examples: map[domain.Label][]string{
			"A": {"a1", "a2", "a3"},
			"B": {"b1"},
		},
		HeaderPrompt: domain.DefaultHeaderPrompt,
	}
}

func TestContextAssembler_Definition(t *testing.T) {
	a := NewContextAssembler()
	p := mustPermutation(t, "X", "A", "Y", "B")

	prompt, ok, err := a.Assemble(AssembleInput{
		Taxonomy:           contextTaxonomy(),
		Sections:           []domain.SectionKind{domain.SectionDefinition},
		Permutation:        p,
		AddTaskInstruction: true,
		Rng:                NewRand(1),
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, strings.HasPrefix(prompt, domain.DefaultHeaderPrompt+"\n\n"), "header comes first:\n%s", prompt)
	assert.True(t, strings.HasSuffix(prompt, "\n\n"+TaskInstruction))
	assert.Contains(t, prompt, "- X: alpha definition")
	assert.Contains(t, prompt, "- Y: beta definition")
	assert.NotContains(t, prompt, "- A:")
}

func TestContextAssembler_EmptyDefinition(t *testing.T) {
	a := NewContextAssembler()
	tax := contextTaxonomy()
	tax.Definitions = nil

	prompt, ok, err := a.Assemble(AssembleInput{
		Taxonomy:        tax,
		Sections:        []domain.SectionKind{domain.SectionDefinition},
		Permutation:     mustPermutation(t, "B", "A", "A", "B"),
		EmptyDefinition: true,
		Rng:             NewRand(2),
	})
	require.NoError(t, err)
	require.True(t, ok)

	lines := strings.Split(prompt, "\n\n")
	assert.ElementsMatch(t, []string{"- A", "- B"}, lines)
}

func TestContextAssembler_MissingDefinition(t *testing.T) {
	tax := contextTaxonomy()
	delete(tax.Definitions, "B")

	_, _, err := NewContextAssembler().Assemble(AssembleInput{
		Taxonomy:    tax,
		Sections:    []domain.SectionKind{domain.SectionDefinition},
		Permutation: mustPermutation(t, "A", "B", "B", "A"),
		Rng:         NewRand(1),
	})
	assert.ErrorIs(t, err, domain.ErrMissingDefinition)
}

func TestContextAssembler_NoTaskInstructionOmitsHeader(t *testing.T) {
	prompt, ok, err := NewContextAssembler().Assemble(AssembleInput{
		Taxonomy:    contextTaxonomy(),
		Sections:    []domain.SectionKind{domain.SectionDefinition},
		Permutation: mustPermutation(t, "A", "A", "B", "B"),
		Rng:         NewRand(1),
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, prompt, domain.DefaultHeaderPrompt)
	assert.NotContains(t, prompt, TaskInstruction)
}

func TestContextAssembler_Examples(t *testing.T) {
	tests := []struct {
		name         string
		noisyChannel bool
		perLabel     int
		want         []string
		wantCount    int
	}{
		{
			name:      "labeled exemplars",
			perLabel:  1,
			want:      []string{"Text: b1\nFinancial concept: X"},
			wantCount: 2,
		},
		{
			name:         "noisy channel",
			noisyChannel: true,
			perLabel:     5,
			want:         []string{"Y: a1", "Y: a2", "Y: a3", "X: b1"},
			wantCount:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, ok, err := NewContextAssembler().Assemble(AssembleInput{
				Taxonomy:           contextTaxonomy(),
				Sections:           []domain.SectionKind{domain.SectionExamples},
				Permutation:        mustPermutation(t, "Y", "A", "X", "B"),
				ExamplesPerLabel:   tt.perLabel,
				LabelType:          "Financial concept",
				NoisyChannel:       tt.noisyChannel,
				AddTaskInstruction: true,
				Rng:                NewRand(4),
			})
			require.NoError(t, err)
			require.True(t, ok)

			blocks := strings.Split(prompt, "\n\n")
			assert.Len(t, blocks, tt.wantCount)
			for _, w := range tt.want {
				assert.Contains(t, blocks, w)
			}
			// Examples alone never trigger the task instruction.
			assert.NotContains(t, prompt, TaskInstruction)
		})
	}
}

func TestContextAssembler_DoesNotMutateExamples(t *testing.T) {
	tax := contextTaxonomy()
	_, _, err := NewContextAssembler().Assemble(AssembleInput{
		Taxonomy:         tax,
		Sections:         []domain.SectionKind{domain.SectionExamples},
		Permutation:      mustPermutation(t, "A", "A", "B", "B"),
		ExamplesPerLabel: 3,
		LabelType:        "Concept",
		Rng:              NewRand(11),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, tax.Examples["A"])
}

func TestContextAssembler_SectionOrderAndPreviousText(t *testing.T) {
	prompt, ok, err := NewContextAssembler().Assemble(AssembleInput{
		Taxonomy:           contextTaxonomy(),
		Sections:           []domain.SectionKind{domain.SectionExamples, domain.SectionDefinition},
		Permutation:        mustPermutation(t, "A", "A", "B", "B"),
		ExamplesPerLabel:   1,
		LabelType:          "Concept",
		AddTaskInstruction: true,
		AddPreviousText:    true,
		Rng:                NewRand(3),
	})
	require.NoError(t, err)
	require.True(t, ok)

	exampleAt := strings.Index(prompt, "Text: ")
	headerAt := strings.Index(prompt, domain.DefaultHeaderPrompt)
	taskAt := strings.Index(prompt, TaskInstruction)
	prevAt := strings.Index(prompt, PreviousTextLine)
	assert.True(t, exampleAt < headerAt && headerAt < taskAt && taskAt < prevAt, "unexpected order:\n%s", prompt)
	assert.True(t, strings.HasSuffix(prompt, PreviousTextLine))
}

func TestContextAssembler_Absent(t *testing.T) {
	a := NewContextAssembler()

	_, ok, err := a.Assemble(AssembleInput{Taxonomy: contextTaxonomy(), Permutation: mustPermutation(t, "A", "A")})
	require.NoError(t, err)
	assert.False(t, ok, "no sections means no context")

	tax := contextTaxonomy()
	tax.Examples = nil
	_, ok, err = a.Assemble(AssembleInput{
		Taxonomy:    tax,
		Sections:    []domain.SectionKind{domain.SectionExamples},
		Permutation: mustPermutation(t, "A", "A"),
		Rng:         NewRand(1),
	})
	require.NoError(t, err)
	assert.False(t, ok, "an empty rendering means no context")
}

func TestContextAssembler_Deterministic(t *testing.T) {
	in := func() AssembleInput {
		return AssembleInput{
			Taxonomy:           contextTaxonomy(),
			Sections:           []domain.SectionKind{domain.SectionDefinition, domain.SectionExamples},
			Permutation:        mustPermutation(t, "B", "A", "A", "B"),
			ExamplesPerLabel:   2,
			LabelType:          "Concept",
			AddTaskInstruction: true,
			Rng:                NewRand(99),
		}
	}
	a := NewContextAssembler()
	first, _, err := a.Assemble(in())
	require.NoError(t, err)
	second, _, err := a.Assemble(in())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
