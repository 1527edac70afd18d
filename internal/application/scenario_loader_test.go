package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-postfactum/internal/domain"
)

const suppliersYAML = `
name: suppliers
target_r: 0.8
criteria:
  - {name: Price, weight: 5}
  - {name: Quality, weight: 3}
  - {name: Delivery Time, weight: 1}
alternatives:
  - id: acme
    performances: {price: 0.8, QUALITY: 0.5, "delivery time": 0.4}
    exclude: [Price]
  - id: globex
    performances: {Price: 0.3, Quality: 0.9, Delivery Time: 0.7}
    target_r: 0.65
    constant_wm: true
`

func TestParseScenarios(t *testing.T) {
	scns, err := ParseScenarios([]byte(suppliersYAML))
	require.NoError(t, err)
	require.Len(t, scns, 2)

	acme := scns[0]
	assert.Equal(t, "acme", acme.ID)
	assert.Equal(t, []float64{0.8, 0.5, 0.4}, acme.Performances)
	assert.InDeltaSlice(t, []float64{1, 0.6, 0.2}, acme.Weights, 1e-12)
	assert.Equal(t, 0.8, acme.TargetR)
	assert.Equal(t, []int{0}, acme.Excluded)
	assert.False(t, acme.ConstantWM)
	require.NoError(t, acme.Validate())

	globex := scns[1]
	assert.Equal(t, []float64{0.3, 0.9, 0.7}, globex.Performances)
	assert.Equal(t, 0.65, globex.TargetR)
	assert.True(t, globex.ConstantWM)
	assert.Empty(t, globex.Excluded)
	require.NoError(t, globex.Validate())
}

func TestParseScenarios_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		is      error
	}{
		{
			name: "typo suggests name",
			yaml: `
target_r: 0.8
criteria: [{name: Quality, weight: 1}]
alternatives:
  - id: a
    performances: {Qualty: 0.5}
`,
			wantErr: `did you mean "Quality"`,
			is:      ErrUnknownCriterion,
		},
		{
			name: "unrelated name",
			yaml: `
target_r: 0.8
criteria: [{name: Quality, weight: 1}]
alternatives:
  - id: a
    performances: {Quality: 0.5}
    exclude: [Warranty]
`,
			wantErr: `unknown criterion "Warranty"`,
			is:      ErrUnknownCriterion,
		},
		{
			name: "missing performance",
			yaml: `
target_r: 0.8
criteria: [{name: Price, weight: 1}, {name: Quality, weight: 1}]
alternatives:
  - id: a
    performances: {Price: 0.5}
`,
			wantErr: `missing performance for criterion "Quality"`,
		},
		{
			name: "same criterion twice by case",
			yaml: `
target_r: 0.8
criteria: [{name: Price, weight: 1}]
alternatives:
  - id: a
    performances: {Price: 0.5, price: 0.6}
`,
			wantErr: "given twice",
		},
		{
			name: "criteria differ only in case",
			yaml: `
target_r: 0.8
criteria: [{name: Price, weight: 1}, {name: PRICE, weight: 2}]
alternatives:
  - id: a
    performances: {Price: 0.5}
`,
			wantErr: "differ only in case",
		},
		{
			name: "performance out of range",
			yaml: `
target_r: 0.8
criteria: [{name: Price, weight: 1}]
alternatives:
  - id: a
    performances: {Price: 1.5}
`,
			wantErr: "unitinterval",
		},
		{
			name: "target out of range",
			yaml: `
target_r: 1
criteria: [{name: Price, weight: 1}]
alternatives:
  - id: a
    performances: {Price: 0.5}
`,
			wantErr: "openunit",
		},
		{
			name: "non-positive weight",
			yaml: `
target_r: 0.5
criteria: [{name: Price, weight: 0}]
alternatives:
  - id: a
    performances: {Price: 0.5}
`,
			wantErr: "Weight",
		},
		{
			name:    "unknown key",
			yaml:    "target_r: 0.5\nthreshold: 3\n",
			wantErr: "YAML decode failed",
		},
		{
			name: "no alternatives",
			yaml: `
target_r: 0.5
criteria: [{name: Price, weight: 1}]
`,
			wantErr: "Alternatives",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenarios([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suppliersYAML), 0o600))

	scns, err := LoadScenarioFile(path)
	require.NoError(t, err)
	assert.Len(t, scns, 2)

	_, err = LoadScenarioFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenarios_Reader(t *testing.T) {
	scns, err := LoadScenarios(strings.NewReader(suppliersYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, []string{scns[0].ID, scns[1].ID})
}

func TestNormalizeWeights(t *testing.T) {
	got := normalizeWeights([]CriterionSpec{{Name: "a", Weight: 2}, {Name: "b", Weight: 8}, {Name: "c", Weight: 8}})
	assert.Equal(t, []float64{0.25, 1, 1}, got)

	scn := domain.Scenario{Performances: []float64{0.1, 0.2, 0.3}, Weights: got, TargetR: 0.5}
	assert.NoError(t, scn.Validate())
}
