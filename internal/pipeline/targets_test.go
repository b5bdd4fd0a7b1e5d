package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTargets(t *testing.T) {
	got := NormalizeTargets([]string{
		"  10.0.0.1 ", "", "example.com", "10.0.0.1", "\t", "192.168.0.0/24",
	})
	assert.Equal(t, []string{"10.0.0.1", "example.com", "192.168.0.0/24"}, got)
}

func TestNormalizeTargetsEmpty(t *testing.T) {
	assert.Nil(t, NormalizeTargets(nil))
	assert.Nil(t, NormalizeTargets([]string{"", "  "}))
}

func TestValidateTargetsAcceptsValidForms(t *testing.T) {
	valid := []string{
		"10.0.0.1",
		"2001:db8::1",
		"192.168.0.0/24",
		"example.com",
		"sub.domain.example.com",
		"host-with-dash",
		"localhost",
	}
	for _, target := range valid {
		assert.NoError(t, ValidateTargets([]string{target}), target)
	}
}

func TestValidateTargetsRejectsInvalidForms(t *testing.T) {
	invalid := []string{
		"not a target",
		"bad_underscore.com",
		"-leading-dash.com",
		"trailing-dash-.com",
		"10.0.0.0/99",
		strings.Repeat("a", 254),
	}
	for _, target := range invalid {
		assert.Error(t, ValidateTargets([]string{target}), target)
	}
}

func TestValidateTargetsRequiresAtLeastOne(t *testing.T) {
	err := ValidateTargets(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one target")
}

func TestValidateTargetsNamesOffender(t *testing.T) {
	err := ValidateTargets([]string{"10.0.0.1", "bad target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad target"`)
}
