package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFlagsExplicitFlagsWin(t *testing.T) {
	flags, err := ResolveFlags("thorough", "-sS -p 22")
	require.NoError(t, err)
	assert.Equal(t, "-sS -p 22", flags)
}

func TestResolveFlagsProfile(t *testing.T) {
	flags, err := ResolveFlags("quick", "")
	require.NoError(t, err)
	assert.Equal(t, "-T4 -F", flags)
}

func TestResolveFlagsEmptyMeansDefault(t *testing.T) {
	flags, err := ResolveFlags("", "")
	require.NoError(t, err)
	assert.Equal(t, "-sV -Pn", flags)
}

func TestResolveFlagsUnknownProfile(t *testing.T) {
	_, err := ResolveFlags("stealth", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"stealth"`)
	assert.Contains(t, err.Error(), "default")
	assert.Contains(t, err.Error(), "vuln")
}

func TestBuiltinProfilesSorted(t *testing.T) {
	profiles := BuiltinProfiles()
	require.Len(t, profiles, 4)

	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
		assert.NotEmpty(t, p.Flags, p.Name)
		assert.NotEmpty(t, p.Description, p.Name)
	}
	assert.Equal(t, []string{"default", "quick", "thorough", "vuln"}, names)
}
