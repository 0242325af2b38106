package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

func TestRunID(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		sections []domain.SectionKind
		policy   domain.NoisePolicy
		total    int
		index    int
		want     string
	}{
		{
			name:     "factual single run",
			model:    "openai/gpt-4o",
			sections: []domain.SectionKind{domain.SectionDefinition},
			policy:   domain.NoiseNone,
			total:    1,
			index:    1,
			want:     "openai_gpt-4o-financial-capital_definition",
		},
		{
			name:     "baseline of a single permutation",
			model:    "openai/gpt-4o",
			sections: []domain.SectionKind{domain.SectionDefinition},
			policy:   domain.NoiseRandom,
			total:    1,
			index:    0,
			want:     "openai_gpt-4o-financial-capital_random-definition_0_of_1",
		},
		{
			name:     "sampled run of a single permutation",
			model:    "openai/gpt-4o",
			sections: []domain.SectionKind{domain.SectionDefinition},
			policy:   domain.NoiseRandom,
			total:    1,
			index:    1,
			want:     "openai_gpt-4o-financial-capital_random-definition",
		},
		{
			name:     "random sweep",
			model:    "anthropic/claude-3-haiku",
			sections: []domain.SectionKind{domain.SectionDefinition, domain.SectionExamples},
			policy:   domain.NoiseRandom,
			total:    60,
			index:    3,
			want:     "anthropic_claude-3-haiku-financial-capital_random-definition-examples_3_of_60",
		},
		{
			name:   "no sections",
			model:  "google/gemini",
			policy: domain.NoiseOOD,
			total:  1,
			index:  1,
			want:   "google_gemini-financial-capital_ood-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RunID(tt.model, "financial", "capital", tt.sections, tt.policy, tt.total, tt.index)
			assert.Equal(t, tt.want, got)
		})
	}
}
