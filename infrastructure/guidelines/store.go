// Package guidelines loads annotation guidelines (label definitions,
// exemplars and header prompts) from YAML and serves them as taxonomies.
//
// The financial domain ships embedded in the binary. More domains can be
// added from a directory of YAML files with LoadDir.
package guidelines

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

//go:embed data/*.yaml
var builtin embed.FS

// fileConfig is the on-disk layout of one guideline file.
type fileConfig struct {
	Domain   string                   `yaml:"domain" validate:"required"`
	Concepts map[string]conceptConfig `yaml:"concepts" validate:"required,min=1,dive,keys,required,endkeys"`
}

type conceptConfig struct {
	HeaderPrompt string              `yaml:"header_prompt"`
	Labels       labelSpec           `yaml:"labels"`
	Definitions  map[string]string   `yaml:"definitions"`
	Examples     map[string][]string `yaml:"examples"`
}

// labelSpec accepts either a list of labels or a mapping from label to the
// name the classifier should answer with.
type labelSpec struct {
	Order   []string
	Display map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *labelSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&l.Order)
	case yaml.MappingNode:
		l.Display = make(map[string]string, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key, value string
			if err := node.Content[i].Decode(&key); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&value); err != nil {
				return err
			}
			l.Order = append(l.Order, key)
			l.Display[key] = value
		}
		return nil
	default:
		return fmt.Errorf("line %d: labels must be a list or a mapping", node.Line)
	}
}

// Store is an in-memory guideline store. Taxonomies are built once at load
// time and must not be mutated by callers.
type Store struct {
	mu       sync.RWMutex
	domains  map[string]map[string]*domain.Taxonomy
	digests  map[string]string
	validate *validator.Validate
}

var _ ports.GuidelineStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		domains:  make(map[string]map[string]*domain.Taxonomy),
		digests:  make(map[string]string),
		validate: validator.New(),
	}
}

// NewBuiltinStore creates a store holding the embedded guideline files.
func NewBuiltinStore() (*Store, error) {
	s := NewStore()
	entries, err := fs.ReadDir(builtin, "data")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded guidelines: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded guidelines: %w", err)
		}
		if err := s.Load(data); err != nil {
			return nil, fmt.Errorf("embedded %s: %w", e.Name(), err)
		}
	}
	return s, nil
}

// LoadDir loads every .yaml or .yml file in dir. A file may extend a domain
// that is already loaded but may not redefine one of its concepts.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("failed to read guideline directory: %w", err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := s.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads a single guideline file.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read guideline file: %w", err)
	}
	if err := s.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load parses, validates and registers one guideline document. Loading the
// same bytes twice is a no-op.
func (s *Store) Load(data []byte) error {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("failed to parse guidelines: %w", err)
	}
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}

	built := make(map[string]*domain.Taxonomy, len(cfg.Concepts))
	for name, c := range cfg.Concepts {
		t, err := buildTaxonomy(cfg.Domain, name, c)
		if err != nil {
			return err
		}
		built[name] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.digests[digest] != "" {
		return nil
	}
	concepts := s.domains[cfg.Domain]
	if concepts == nil {
		concepts = make(map[string]*domain.Taxonomy, len(built))
		s.domains[cfg.Domain] = concepts
	}
	for name := range built {
		if _, dup := concepts[name]; dup {
			return domain.NewConfigurationError(cfg.Domain+"."+name,
				fmt.Errorf("%w: concept defined twice", domain.ErrInvalidConfiguration))
		}
	}
	for name, t := range built {
		concepts[name] = t
	}
	s.digests[digest] = cfg.Domain
	return nil
}

func buildTaxonomy(domainName, concept string, c conceptConfig) (*domain.Taxonomy, error) {
	order := c.Labels.Order
	if len(order) == 0 {
		// Without an explicit list the labels are the defined ones, sorted.
		for l := range c.Definitions {
			order = append(order, l)
		}
		sort.Strings(order)
	}

	t := &domain.Taxonomy{
		Domain:       domainName,
		Concept:      concept,
		HeaderPrompt: strings.TrimSpace(c.HeaderPrompt),
	}
	for _, l := range order {
		t.Labels = append(t.Labels, domain.Label(l))
	}
	if len(c.Labels.Display) > 0 {
		t.Display = make(map[domain.Label]string, len(c.Labels.Display))
		for k, v := range c.Labels.Display {
			t.Display[domain.Label(k)] = v
		}
	}
	if len(c.Definitions) > 0 {
		t.Definitions = make(map[domain.Label]string, len(c.Definitions))
		for k, v := range c.Definitions {
			t.Definitions[domain.Label(k)] = strings.TrimSpace(v)
		}
	}
	if len(c.Examples) > 0 {
		t.Examples = make(map[domain.Label][]string, len(c.Examples))
		for k, v := range c.Examples {
			t.Examples[domain.Label(k)] = slices.Clone(v)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Lookup implements ports.GuidelineStore.
func (s *Store) Lookup(domainName, concept string) (*domain.Taxonomy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	concepts, ok := s.domains[domainName]
	if !ok {
		return nil, ports.NewConfigError("domain", fmt.Errorf("%w: %q", ports.ErrUnknownDomain, domainName))
	}
	t, ok := concepts[concept]
	if !ok {
		return nil, ports.NewConfigError("concept", fmt.Errorf("%w: %q in domain %q", ports.ErrUnknownConcept, concept, domainName))
	}
	return t, nil
}

// Domains lists the loaded domains, sorted.
func (s *Store) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.domains))
	for d := range s.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Concepts lists the concepts of a domain, sorted.
func (s *Store) Concepts(domainName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.domains[domainName]))
	for c := range s.domains[domainName] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Digests returns the sha256 of every loaded document, keyed by digest, with
// the domain it defined. Runs log them so results can be tied to the exact
// guideline text.
func (s *Store) Digests() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.digests))
	for k, v := range s.digests {
		out[k] = v
	}
	return out
}
