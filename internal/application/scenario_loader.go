package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// ErrUnknownCriterion indicates a criterion name that the file does not declare.
var ErrUnknownCriterion = errors.New("unknown criterion")

// ScenarioFile is the YAML form of a batch of post-factum questions over
// one set of named criteria.
//
//	name: suppliers
//	target_r: 0.8
//	criteria:
//	  - {name: Price, weight: 5}
//	  - {name: Quality, weight: 3}
//	alternatives:
//	  - id: acme
//	    performances: {price: 0.8, quality: 0.5}
//	    exclude: [Price]
type ScenarioFile struct {
	// Name labels the batch in logs.
	Name string `yaml:"name" validate:"max=255"`
	// TargetR is the default target closeness for every alternative.
	TargetR float64 `yaml:"target_r" validate:"openunit"`
	// ConstantWM is the default for retaining the weighted mean.
	ConstantWM bool `yaml:"constant_wm"`
	// Criteria declares the criteria in vector order. Weights may be given
	// on any positive scale; they are divided by their maximum on load.
	Criteria []CriterionSpec `yaml:"criteria" validate:"required,min=1,unique=Name,dive"`
	// Alternatives are the questions to answer.
	Alternatives []AlternativeSpec `yaml:"alternatives" validate:"required,min=1,dive"`
}

// CriterionSpec declares one gain-type criterion.
type CriterionSpec struct {
	Name   string  `yaml:"name" validate:"required,max=100"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

// AlternativeSpec is one alternative and its per-question settings.
type AlternativeSpec struct {
	// ID identifies the alternative.
	ID string `yaml:"id" validate:"required,max=255"`
	// Performances maps criterion names to utility-space scores in [0, 1].
	// Names match case-insensitively.
	Performances map[string]float64 `yaml:"performances" validate:"required,min=1,dive,keys,required,endkeys,unitinterval"`
	// Exclude names criteria that must not change.
	Exclude []string `yaml:"exclude" validate:"dive,required"`
	// TargetR overrides ScenarioFile.TargetR when set.
	TargetR *float64 `yaml:"target_r" validate:"omitempty,openunit"`
	// ConstantWM overrides ScenarioFile.ConstantWM when set.
	ConstantWM *bool `yaml:"constant_wm"`
}

// LoadScenarioFile reads and resolves a scenario file from disk.
func LoadScenarioFile(path string) ([]domain.Scenario, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseScenarios(data)
}

// LoadScenarios reads and resolves a scenario file from r.
func LoadScenarios(r io.Reader) ([]domain.Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes YAML, validates it and resolves criterion names
// into index-based scenarios. Unknown keys are rejected.
func ParseScenarios(data []byte) ([]domain.Scenario, error) {
	var file ScenarioFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Struct(file); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return file.Resolve()
}

// Resolve turns the named form into scenarios, one per alternative, in
// file order.
func (f ScenarioFile) Resolve() ([]domain.Scenario, error) {
	idx, err := newCriterionIndex(f.Criteria)
	if err != nil {
		return nil, err
	}
	weights := normalizeWeights(f.Criteria)

	out := make([]domain.Scenario, 0, len(f.Alternatives))
	for _, alt := range f.Alternatives {
		scn := domain.Scenario{
			ID:           alt.ID,
			Weights:      weights,
			TargetR:      f.TargetR,
			ConstantWM:   f.ConstantWM,
			Performances: make([]float64, len(f.Criteria)),
		}
		if alt.TargetR != nil {
			scn.TargetR = *alt.TargetR
		}
		if alt.ConstantWM != nil {
			scn.ConstantWM = *alt.ConstantWM
		}

		seen := make([]bool, len(f.Criteria))
		for name, p := range alt.Performances {
			i, err := idx.lookup(name)
			if err != nil {
				return nil, fmt.Errorf("alternative %q: %w", alt.ID, err)
			}
			if seen[i] {
				return nil, fmt.Errorf("alternative %q: criterion %q given twice", alt.ID, f.Criteria[i].Name)
			}
			seen[i] = true
			scn.Performances[i] = p
		}
		for i, ok := range seen {
			if !ok {
				return nil, fmt.Errorf("alternative %q: missing performance for criterion %q", alt.ID, f.Criteria[i].Name)
			}
		}

		for _, name := range alt.Exclude {
			i, err := idx.lookup(name)
			if err != nil {
				return nil, fmt.Errorf("alternative %q exclude: %w", alt.ID, err)
			}
			scn.Excluded = append(scn.Excluded, i)
		}
		out = append(out, scn)
	}
	return out, nil
}

// normalizeWeights divides every weight by the largest one.
func normalizeWeights(criteria []CriterionSpec) []float64 {
	w := make([]float64, len(criteria))
	maxW := 0.0
	for i, c := range criteria {
		w[i] = c.Weight
		maxW = max(maxW, c.Weight)
	}
	for i := range w {
		w[i] /= maxW
	}
	return w
}

// criterionIndex resolves criterion names case-insensitively.
type criterionIndex struct {
	caser  cases.Caser
	byName map[string]int
	names  []string
}

func newCriterionIndex(criteria []CriterionSpec) (*criterionIndex, error) {
	idx := &criterionIndex{
		caser:  cases.Fold(),
		byName: make(map[string]int, len(criteria)),
		names:  make([]string, len(criteria)),
	}
	for i, c := range criteria {
		key := idx.fold(c.Name)
		if j, dup := idx.byName[key]; dup {
			return nil, fmt.Errorf("criteria %q and %q differ only in case", criteria[j].Name, c.Name)
		}
		idx.byName[key] = i
		idx.names[i] = c.Name
	}
	return idx, nil
}

func (c *criterionIndex) fold(name string) string {
	return c.caser.String(strings.TrimSpace(name))
}

// lookup returns the index of name, or ErrUnknownCriterion with the closest
// declared name when one is near enough to be a likely typo.
func (c *criterionIndex) lookup(name string) (int, error) {
	key := c.fold(name)
	if i, ok := c.byName[key]; ok {
		return i, nil
	}

	best, bestDist := "", -1
	for _, candidate := range c.names {
		d := levenshtein.ComputeDistance(key, c.fold(candidate))
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist >= 0 && bestDist <= max(2, utf8.RuneCountInString(key)/3) {
		return 0, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownCriterion, name, best)
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCriterion, name)
}
