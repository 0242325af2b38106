package dataset

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

const sampleCSV = "\ufefftext,capital,previous\n" +
	"We hired 200 engineers.,Human,Intro\n" +
	"\"Revenue grew, again.\",Financial,\n" +
	"Wind farms expanded.,Natural,Energy\n"

func TestLoader_Load(t *testing.T) {
	got, err := NewLoader(nil).Load(strings.NewReader(sampleCSV), Columns{Source: "text", Target: "capital", PreviousText: "previous"})
	require.NoError(t, err)

	want := []ports.Sample{
		{Index: 0, Source: "We hired 200 engineers.", Target: "Human", PreviousText: "Intro"},
		{Index: 1, Source: "Revenue grew, again.", Target: "Financial"},
		{Index: 2, Source: "Wind farms expanded.", Target: "Natural", PreviousText: "Energy"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_MissingColumn(t *testing.T) {
	tests := []struct {
		name string
		cols Columns
	}{
		{"source", Columns{Source: "sentence", Target: "capital"}},
		{"target", Columns{Source: "text", Target: "sentiment"}},
		{"previous text", Columns{Source: "text", Target: "capital", PreviousText: "context"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil).Load(strings.NewReader(sampleCSV), tt.cols)
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	got, err := NewLoader(nil).LoadFile(path, Columns{Source: "text", Target: "capital"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Empty(t, got[0].PreviousText)

	_, err = NewLoader(nil).LoadFile(filepath.Join(t.TempDir(), "none.csv"), Columns{Source: "text", Target: "capital"})
	assert.Error(t, err)
}

func samplesOf(targets ...string) []ports.Sample {
	out := make([]ports.Sample, len(targets))
	for i, tg := range targets {
		out[i] = ports.Sample{Index: i, Source: "s" + string(rune('a'+i)), Target: tg}
	}
	return out
}

func countByTarget(samples []ports.Sample) map[string]int {
	out := make(map[string]int)
	for _, s := range samples {
		out[s.Target]++
	}
	return out
}

func TestSampleBalanced(t *testing.T) {
	data := samplesOf("A", "A", "A", "B", "B", "nan", "", "C", "C", "C", "C")

	tests := []struct {
		name       string
		maxSamples int
		want       map[string]int
	}{
		{"minority class size", 0, map[string]int{"A": 2, "B": 2, "C": 2}},
		{"max samples split across classes", 9, map[string]int{"A": 3, "B": 2, "C": 3}},
		{"max samples smaller than classes", 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleBalanced(data, tt.maxSamples, rand.New(rand.NewPCG(17, 0)), nil)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, countByTarget(got))
			for i, s := range got {
				assert.Equal(t, i, s.Index, "samples are re-indexed")
			}
		})
	}
}

func TestSampleBalanced_ClassOrderAndDeterminism(t *testing.T) {
	data := samplesOf("b", "a", "b", "a", "c", "c")

	first := BalancedPreprocess(0, 7, nil)(data)
	second := BalancedPreprocess(0, 7, nil)(data)
	assert.Equal(t, first, second)

	var classes []string
	for _, s := range first {
		classes = append(classes, s.Target)
	}
	assert.Equal(t, []string{"a", "a", "b", "b", "c", "c"}, classes)
	assert.Equal(t, 0, data[0].Index, "input is not modified")
}

func TestSampleBalanced_AllEmpty(t *testing.T) {
	assert.Nil(t, SampleBalanced(samplesOf("nan", " "), 0, nil, nil))
}
