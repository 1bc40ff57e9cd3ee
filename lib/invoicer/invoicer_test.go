package invoicer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymops-backend/lib/restyutil"
	"gymops-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	cleanup := telemetry.SetupForTesting(t, "test:invoicer")
	t.Cleanup(cleanup)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseUrl:  server.URL,
		ApiToken: "test-token",
		Retry:    &restyutil.RetryPolicy{},
	})
	require.NoError(t, err)
	return client
}

func TestCreateInvoice(t *testing.T) {
	var seenKeys []string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		key := r.Header.Get("Idempotency-Key")
		require.NotEmpty(t, key)
		seenKeys = append(seenKeys, key)

		var req createInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(4950), req.AmountCents)

		json.NewEncoder(w).Encode(Invoice{
			Id:          "inv-1",
			MemberId:    req.MemberId,
			AmountCents: req.AmountCents,
			Memo:        req.Memo,
			Status:      "open",
		})
	})
	client := newTestClient(t, mux)

	invoice, err := client.CreateInvoice(context.Background(), "4411", 4950, "past due dues")
	require.NoError(t, err)
	require.Equal(t, "inv-1", invoice.Id)
	require.Equal(t, "open", invoice.Status)

	// a second invoice gets its own key
	_, err = client.CreateInvoice(context.Background(), "4411", 4950, "past due dues")
	require.NoError(t, err)
	require.Len(t, seenKeys, 2)
	require.NotEqual(t, seenKeys[0], seenKeys[1])
}

func TestCreateInvoiceRejectsNonPositiveAmounts(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.CreateInvoice(context.Background(), "4411", 0, "nothing owed")
	require.Error(t, err)
}

func TestCreateInvoiceSurfacesApiErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error": "member is frozen"}`)
	})
	client := newTestClient(t, mux)

	_, err := client.CreateInvoice(context.Background(), "4411", 100, "memo")
	require.ErrorContains(t, err, "422")
}

func TestGetInvoice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/invoices/inv-9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Invoice{Id: "inv-9", Status: "paid"})
	})
	client := newTestClient(t, mux)

	invoice, err := client.GetInvoice(context.Background(), "inv-9")
	require.NoError(t, err)
	require.Equal(t, "paid", invoice.Status)
}
