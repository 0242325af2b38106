package application

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// MaxEnumerableLabels is the largest label set whose |L|! orderings can be
// enumerated. 10! ranks fit comfortably in memory; 11! do not.
const MaxEnumerableLabels = 10

// OODLabels is the pool of nonsense decoy names used by the ood policy.
var OODLabels = []domain.Label{
	"Flibberknock",
	"Quibblesnatch",
	"Blibberflop",
	"Ziggledorf",
	"Snizzlewump",
	"Wobblequark",
	"Jibberplunk",
	"Crumblefluff",
	"Splonglewort",
	"Dinglewhack",
}

var factorials = func() []int {
	f := make([]int, MaxEnumerableLabels+1)
	f[0] = 1
	for i := 1; i < len(f); i++ {
		f[i] = f[i-1] * i
	}
	return f
}()

// NewRand returns the deterministic random source used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// PermutationSpace is a shuffled enumeration of all orderings of n items.
// Orderings are stored by lexicographic rank and unranked on demand.
type PermutationSpace struct {
	n     int
	ranks []uint32
}

// NewPermutationSpace shuffles the n! ranks with rng.
func NewPermutationSpace(n int, rng *rand.Rand) (*PermutationSpace, error) {
	if n < 0 || n > MaxEnumerableLabels {
		return nil, fmt.Errorf("%w: %d labels (max %d)", domain.ErrPermutationSpaceTooLarge, n, MaxEnumerableLabels)
	}
	ranks := make([]uint32, factorials[n])
	for i := range ranks {
		ranks[i] = uint32(i)
	}
	rng.Shuffle(len(ranks), func(i, j int) { ranks[i], ranks[j] = ranks[j], ranks[i] })
	return &PermutationSpace{n: n, ranks: ranks}, nil
}

// Size returns n!.
func (s *PermutationSpace) Size() int { return len(s.ranks) }

// Ordering returns the index-th ordering as positions into the item list.
// It reports false once index runs past the enumeration.
func (s *PermutationSpace) Ordering(index int) ([]int, bool) {
	if index < 0 || index >= s.Size() {
		return nil, false
	}
	return unrank(int(s.ranks[index]), s.n), true
}

// unrank decodes a lexicographic rank through the factorial number system.
// Rank 0 is the identity ordering.
func unrank(rank, n int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	out := make([]int, 0, n)
	for i := n - 1; i >= 0; i-- {
		q := rank / factorials[i]
		rank %= factorials[i]
		out = append(out, pool[q])
		pool = append(pool[:q], pool[q+1:]...)
	}
	return out
}

// GeneratePermutation builds the label permutation for one candidate run.
//
// The noise policy decides the mapping. For the random policy, and for any
// policy when enumerateAll is set, index selects one ordering from an
// rng-shuffled enumeration of all |L|! orderings. For random the ordering
// assigns the presented names; for the others it only reorders entries.
// An index past the enumeration yields an empty permutation under the random
// policy and leaves the entries unchanged otherwise.
func GeneratePermutation(
	labels []domain.Label,
	policy domain.NoisePolicy,
	rng *rand.Rand,
	index int,
	enumerateAll bool,
) (*domain.LabelPermutation, error) {
	return generate(labels, policy, rng, index, enumerateAll, func(n int) (*PermutationSpace, error) {
		return NewPermutationSpace(n, rng)
	})
}

// Generator produces permutations for a fixed label set and policy. The
// enumeration of orderings is built once from the seed and reused, so the
// index-th candidate is the same across calls.
type Generator struct {
	labels       []domain.Label
	policy       domain.NoisePolicy
	enumerateAll bool
	seed         uint64

	once     sync.Once
	space    *PermutationSpace
	spaceErr error
}

// NewGenerator creates a Generator.
func NewGenerator(labels []domain.Label, policy domain.NoisePolicy, seed uint64, enumerateAll bool) *Generator {
	ls := make([]domain.Label, len(labels))
	copy(ls, labels)
	return &Generator{
		labels:       ls,
		policy:       policy,
		enumerateAll: enumerateAll,
		seed:         seed,
	}
}

// Generate returns the candidate at index. rng drives the non-enumerated
// choices of the nonfactual and ood policies.
func (g *Generator) Generate(rng *rand.Rand, index int) (*domain.LabelPermutation, error) {
	return generate(g.labels, g.policy, rng, index, g.enumerateAll, g.spaceFor)
}

func (g *Generator) spaceFor(n int) (*PermutationSpace, error) {
	g.once.Do(func() {
		g.space, g.spaceErr = NewPermutationSpace(n, NewRand(g.seed))
	})
	return g.space, g.spaceErr
}

func generate(
	labels []domain.Label,
	policy domain.NoisePolicy,
	rng *rand.Rand,
	index int,
	enumerateAll bool,
	space func(n int) (*PermutationSpace, error),
) (*domain.LabelPermutation, error) {
	var (
		entries []domain.PermutationEntry
		err     error
	)

	switch policy {
	case domain.NoiseNone, domain.NoiseRandom:
		entries = identityEntries(labels)
	case domain.NoiseNonfactual:
		entries, err = derange(labels, rng)
	case domain.NoiseOOD:
		entries, err = decoys(labels, rng)
	default:
		return nil, domain.NewConfigurationError("label_noise",
			fmt.Errorf("%w: unknown noise policy %q", domain.ErrInvalidConfiguration, policy))
	}
	if err != nil {
		return nil, err
	}

	if policy != domain.NoiseRandom && !enumerateAll {
		return domain.NewLabelPermutation(entries)
	}

	s, err := space(len(entries))
	if err != nil {
		return nil, err
	}
	ordering, ok := s.Ordering(index)
	if !ok {
		if policy == domain.NoiseRandom {
			return &domain.LabelPermutation{}, nil
		}
		return domain.NewLabelPermutation(entries)
	}

	out := make([]domain.PermutationEntry, len(entries))
	for i, pos := range ordering {
		if policy == domain.NoiseRandom {
			out[i] = domain.PermutationEntry{Presented: entries[pos].Presented, True: entries[i].True}
		} else {
			out[i] = entries[pos]
		}
	}
	return domain.NewLabelPermutation(out)
}

func identityEntries(labels []domain.Label) []domain.PermutationEntry {
	entries := make([]domain.PermutationEntry, len(labels))
	for i, l := range labels {
		entries[i] = domain.PermutationEntry{Presented: l, True: l}
	}
	return entries
}

// derange maps every label onto a different, unused label. At the
// penultimate step the last label is forced if it is still free, since it
// could otherwise only be matched with itself.
func derange(labels []domain.Label, rng *rand.Rand) ([]domain.PermutationEntry, error) {
	n := len(labels)
	if n < 2 {
		return nil, domain.NewConfigurationError("label_noise",
			fmt.Errorf("%w: %d label(s)", domain.ErrNoDerangement, n))
	}

	used := make(map[domain.Label]bool, n)
	entries := make([]domain.PermutationEntry, 0, n)
	for i, source := range labels {
		var candidates []domain.Label
		if last := labels[n-1]; i == n-2 && !used[last] {
			candidates = []domain.Label{last}
		} else {
			for _, l := range labels {
				if l != source && !used[l] {
					candidates = append(candidates, l)
				}
			}
		}
		target := candidates[rng.IntN(len(candidates))]
		used[target] = true
		entries = append(entries, domain.PermutationEntry{Presented: target, True: source})
	}
	return entries, nil
}

// decoys presents every label under a distinct nonsense token. Pool tokens
// that collide with a taxonomy label are never used.
func decoys(labels []domain.Label, rng *rand.Rand) ([]domain.PermutationEntry, error) {
	pool := make([]domain.Label, 0, len(OODLabels))
	for _, d := range OODLabels {
		collides := false
		for _, l := range labels {
			if strings.EqualFold(string(d), string(l)) {
				collides = true
				break
			}
		}
		if !collides {
			pool = append(pool, d)
		}
	}
	if len(pool) < len(labels) {
		return nil, domain.NewConfigurationError("ood_labels",
			fmt.Errorf("%w: need %d decoys, %d available", domain.ErrDecoyPoolExhausted, len(labels), len(pool)))
	}

	entries := make([]domain.PermutationEntry, 0, len(labels))
	for _, l := range labels {
		j := rng.IntN(len(pool))
		entries = append(entries, domain.PermutationEntry{Presented: pool[j], True: l})
		pool = append(pool[:j], pool[j+1:]...)
	}
	return entries, nil
}
