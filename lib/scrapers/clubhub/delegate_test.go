package clubhub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenFollowsDelegation(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, false))

	tokenA, err := client.SwitchContext(ctx, "101")
	require.NoError(t, err)
	require.Equal(t, "tok-101", tokenA)

	// the token must always reflect the active delegation scope,
	// never a cached value from the previous switch
	tokenB, err := client.SwitchContext(ctx, "202")
	require.NoError(t, err)
	require.Equal(t, "tok-202", tokenB)
}

func TestDelegationCookieFallback(t *testing.T) {
	portal := newFakePortal(t)
	portal.breakDelegation = true
	client := newTestClient(t, portal)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, false))

	token, err := client.SwitchContext(ctx, "303")
	require.NoError(t, err)
	require.Equal(t, "tok-303", token)
}

func TestSwitchContextNoToken(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, false))

	// the fake's token page refuses until a delegation exists; with a
	// member the portal doesn't know, every probe comes back empty
	portal.breakDelegation = true
	token, err := client.SwitchContext(ctx, "")
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestDefaultExtractors(t *testing.T) {
	testCases := []struct {
		script string
		expect string
	}{
		{script: `var cfg = {"accessToken": "abc.def-123"};`, expect: "abc.def-123"},
		{script: `var cfg = {"access_token": "xyz"};`, expect: "xyz"},
		{script: `window.__ACCESS_TOKEN__ = 'tok_55';`, expect: "tok_55"},
		{script: `var bearerToken = "raw-tok";`, expect: "raw-tok"},
		{script: `console.log("nothing here");`, expect: ""},
	}

	extractors := DefaultExtractors()
	for _, test := range testCases {
		got := ""
		for _, e := range extractors {
			if out := e.Extract(test.script); out != "" {
				got = out
				break
			}
		}
		require.Equal(t, test.expect, got, "script: %s", test.script)
	}
}
