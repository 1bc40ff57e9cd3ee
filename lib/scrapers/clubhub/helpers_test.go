package clubhub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gymops-backend/lib/restyutil"
	"gymops-backend/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

var defaultHiddenFields = map[string]string{
	"__RequestVerificationToken": "rvt-0192",
	"returnUrl":                  "/home",
	"__EVENTVALIDATION":          "ev-5561",
}

const loginFormTemplate = `
<html><body>
<form action="/account/login" method="post">
	%s
	<input type="text" name="UserName">
	<input type="password" name="Password">
	<button type="submit">Sign In</button>
</form>
</body></html>`

// a minimal stand-in for the vendor portal. endpoints not registered
// by a test fall through to 404, which matches how the real server
// behaves for guessed endpoint shapes.
type fakePortal struct {
	t      *testing.T
	mux    *http.ServeMux
	server *httptest.Server

	hiddenFields map[string]string

	loginPosts   []url.Values
	loginGets    int
	listingCount int
	delegated    string

	// when true the delegation endpoint errors and the portal reads
	// the delegation cookie instead
	breakDelegation bool
}

func (p *fakePortal) loginPage() string {
	inputs := strings.Builder{}
	for name, value := range p.hiddenFields {
		inputs.WriteString(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, name, value))
	}
	return fmt.Sprintf(loginFormTemplate, inputs.String())
}

func (p *fakePortal) currentDelegate(r *http.Request) string {
	if p.breakDelegation {
		if cookie, err := r.Cookie(cookieDelegate); err == nil {
			return cookie.Value
		}
		return ""
	}
	return p.delegated
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		t:            t,
		mux:          http.NewServeMux(),
		hiddenFields: defaultHiddenFields,
	}

	p.mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			p.loginGets++
			w.Write([]byte(p.loginPage()))
			return
		}
		require.NoError(t, r.ParseForm())
		p.loginPosts = append(p.loginPosts, r.PostForm)

		http.SetCookie(w, &http.Cookie{Name: cookieSession, Value: "sess-1", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: cookieUser, Value: "operator", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})

	p.mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Dashboard</h1></body></html>`))
	})

	p.mux.HandleFunc("/account/delegate/", func(w http.ResponseWriter, r *http.Request) {
		if p.breakDelegation {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		p.delegated = strings.TrimPrefix(r.URL.Path, "/account/delegate/")
	})

	p.mux.HandleFunc("/member/home", func(w http.ResponseWriter, r *http.Request) {
		delegate := p.currentDelegate(r)
		if delegate == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprintf(
			w,
			`<html><body><script>window.__cfg = {"accessToken": "tok-%s"};</script></body></html>`,
			delegate,
		)
	})

	p.server = httptest.NewServer(p.mux)
	t.Cleanup(p.server.Close)
	return p
}

func parseDoc(t *testing.T, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func newTestClient(t *testing.T, p *fakePortal) *Client {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/clubhub")
	t.Cleanup(cleanup)

	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:  p.server.URL,
		Username: "operator@gym.example",
		Password: "hunter2",
		// retries off, candidate-cascade tests count exact attempts
		Retry: &restyutil.RetryPolicy{},
	})
	require.NoError(t, err)
	return client
}
