package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPrefersEnv(t *testing.T) {
	t.Setenv("CLUBHUB_USERNAME", "env-user")

	p := NewProvider(map[string]string{ClubHubUsername: "fallback-user"})
	value, ok := p.Get(ClubHubUsername)
	require.True(t, ok)
	require.Equal(t, "env-user", value)
}

func TestGetFallsBack(t *testing.T) {
	p := NewProvider(map[string]string{ClubHubPassword: "hunter2"})
	value, ok := p.Get(ClubHubPassword)
	require.True(t, ok)
	require.Equal(t, "hunter2", value)
}

func TestGetAbsent(t *testing.T) {
	p := NewProvider(nil)
	_, ok := p.Get("clubhub.nonexistent")
	require.False(t, ok)
}

func TestRequire(t *testing.T) {
	p := NewProvider(map[string]string{ClubHubUsername: "a", ClubHubPassword: "b"})

	got, err := p.Require(ClubHubUsername, ClubHubPassword)
	require.NoError(t, err)
	require.Equal(t, map[string]string{ClubHubUsername: "a", ClubHubPassword: "b"}, got)

	_, err = p.Require(InvoicerToken)
	require.Error(t, err)
}

func TestEnvNameTranslation(t *testing.T) {
	require.Equal(t, "CLUBHUB_USERNAME", envName(ClubHubUsername))
	require.Equal(t, "GYMOPS_CUSTOM_KEY", envName("custom.key"))
}
