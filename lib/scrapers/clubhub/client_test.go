package clubhub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gymops-backend/lib/restyutil"
)

// full path: resolve a member by name, delegate into their context,
// and read their billing status.
func TestLookupThenPaymentStatus(t *testing.T) {
	portal := newFakePortal(t)
	serveListing(portal, listingPage)

	portal.mux.HandleFunc("/api/members/4411/agreements", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-4411", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[
			{"agreementId": 31, "name": "Monthly Unlimited", "status": 2},
			{"agreementId": 32, "name": "Personal Training", "status": 2}
		]`)
	})
	portal.mux.HandleFunc("/api/agreements/31/billing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"description": "July dues", "amount": 25.00, "pastDue": true}]`)
	})
	portal.mux.HandleFunc("/api/agreements/32/billing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"description": "Session pack", "amount": 80.00, "pastDue": false}]`)
	})

	client := newTestClient(t, portal)
	ctx := context.Background()

	id, err := client.Lookup(ctx, LookupQuery{Name: "Jane Doe"})
	require.NoError(t, err)
	require.Equal(t, "4411", id)

	result, err := client.PaymentStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusPastDue, result.Status)
	require.Equal(t, int64(2500), result.PastDueCents)
	require.Equal(t, 2, result.Agreements)

	// the portal saw exactly one authentication for the whole flow
	require.Len(t, portal.loginPosts, 1)
}

func TestTranscriptDumpCapturesPortalTraffic(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	dir := filepath.Join(t.TempDir(), "transcripts")
	client.SetInstrumentOutput(restyutil.NewFilesystemOutput(dir))

	require.NoError(t, client.Authenticate(context.Background(), false))

	// one file per message, the login alone takes a GET and a POST
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2)
}

func TestPaymentStatusPerMemberTokens(t *testing.T) {
	portal := newFakePortal(t)

	billing := func(memberId, body string) {
		portal.mux.HandleFunc(
			"/api/members/"+memberId+"/agreements",
			func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "Bearer tok-"+memberId, r.Header.Get("Authorization"))
				fmt.Fprint(w, `[{"id": `+memberId+`, "status": 2}]`)
			},
		)
		portal.mux.HandleFunc(
			"/api/agreements/"+memberId+"/billing",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			},
		)
	}
	billing("201", `[{"amount": 10.00, "pastDue": true}]`)
	billing("202", `[{"amount": 5.00, "pastDue": false}]`)

	client := newTestClient(t, portal)
	ctx := context.Background()

	first, err := client.PaymentStatus(ctx, "201")
	require.NoError(t, err)
	require.Equal(t, StatusPastDue, first.Status)
	require.Equal(t, int64(1000), first.PastDueCents)

	// switching members re-delegates and picks up the new token
	second, err := client.PaymentStatus(ctx, "202")
	require.NoError(t, err)
	require.Equal(t, StatusCurrent, second.Status)
	require.Zero(t, second.PastDueCents)
}
