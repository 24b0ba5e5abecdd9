package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaturityRankOrdering(t *testing.T) {
	tiers := AllMaturities()
	require.Len(t, tiers, 4)
	for i := 1; i < len(tiers); i++ {
		assert.Greater(t, tiers[i].Rank(), tiers[i-1].Rank(),
			"%s must rank above %s", tiers[i], tiers[i-1])
	}
}

func TestMaturityRankUnrecognized(t *testing.T) {
	// Unrecognized tiers rank as student.
	assert.Equal(t, MaturityStudent.Rank(), Maturity("wizard").Rank())
	assert.Equal(t, MaturityStudent.Rank(), Maturity("").Rank())
}

func TestMaturityRankCaseInsensitive(t *testing.T) {
	assert.Equal(t, 3, Maturity("AUTONOMOUS").Rank())
	assert.Equal(t, 2, Maturity(" Supervised ").Rank())
}

func TestParseMaturity(t *testing.T) {
	m, err := ParseMaturity("Intern")
	require.NoError(t, err)
	assert.Equal(t, MaturityIntern, m)

	_, err = ParseMaturity("wizard")
	require.Error(t, err)
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestCompareMaturity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		sign int
	}{
		{"equal tiers", "intern", "intern", 0},
		{"higher beats lower", "autonomous", "student", 1},
		{"lower loses to higher", "intern", "supervised", -1},
		{"unrecognized ranks as student", "wizard", "student", 0},
		{"unrecognized loses to intern", "wizard", "intern", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareMaturity(tt.a, tt.b)
			switch {
			case tt.sign == 0:
				assert.Zero(t, got)
			case tt.sign > 0:
				assert.Positive(t, got)
			default:
				assert.Negative(t, got)
			}
		})
	}
}

func TestPackageRegistryEntryKey(t *testing.T) {
	e := &PackageRegistryEntry{Name: "web_search", Version: "1.2.0"}
	assert.Equal(t, "web_search:1.2.0", e.Key())
}

func TestNewAgentDefaults(t *testing.T) {
	a := NewAgent("agent-1")
	assert.Equal(t, MaturityStudent, a.Maturity)
	assert.NotNil(t, a.Metadata)
	assert.False(t, a.UpdatedAt.IsZero())
}
