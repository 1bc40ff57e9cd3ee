package clubhub

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginSubmitsAllHiddenFields(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	err := client.Authenticate(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, portal.loginPosts, 1)
	submitted := portal.loginPosts[0]

	// exactly the hidden fields plus the two credential fields
	require.Len(t, submitted, len(defaultHiddenFields)+2)
	for name, value := range defaultHiddenFields {
		require.Equal(t, value, submitted.Get(name))
	}
	require.Equal(t, "operator@gym.example", submitted.Get("UserName"))
	require.Equal(t, "hunter2", submitted.Get("Password"))
}

func TestLoginFailsWithoutSessionCookie(t *testing.T) {
	portal := newFakePortal(t)
	// the portal acknowledges the post but never issues session cookies
	portal.mux = http.NewServeMux()
	portal.server.Config.Handler = portal.mux
	portal.mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(portal.loginPage()))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: cookieUser, Value: "operator", Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	portal.mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Dashboard</body></html>`))
	})

	client := newTestClient(t, portal)
	err := client.Authenticate(context.Background(), false)
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestAuthenticateFastPath(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	require.NoError(t, client.Authenticate(context.Background(), false))
	require.NoError(t, client.Authenticate(context.Background(), false))

	// the second call must not touch the network
	require.Equal(t, 1, portal.loginGets)
	require.Len(t, portal.loginPosts, 1)
}

func TestAuthenticateForce(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	require.NoError(t, client.Authenticate(context.Background(), false))
	require.NoError(t, client.Authenticate(context.Background(), true))
	require.Len(t, portal.loginPosts, 2)
}

func TestStayedOnLoginPageIsFailure(t *testing.T) {
	portal := newFakePortal(t)
	portal.mux = http.NewServeMux()
	portal.server.Config.Handler = portal.mux
	portal.mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// wrong password: cookies are issued but the form is
			// rendered again, the only failure signal there is
			http.SetCookie(w, &http.Cookie{Name: cookieSession, Value: "sess-1", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: cookieUser, Value: "operator", Path: "/"})
		}
		w.Write([]byte(portal.loginPage()))
	})

	client := newTestClient(t, portal)
	err := client.Authenticate(context.Background(), false)
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestFindCredentialFieldsHeuristics(t *testing.T) {
	testCases := []struct {
		page       string
		expectUser string
		expectPass string
	}{
		{
			page:       `<form><input type="text" name="ctl00$LoginEmail"><input type="password" name="ctl00$Pwd"></form>`,
			expectUser: "ctl00$LoginEmail",
			expectPass: "ctl00$Pwd",
		},
		{
			page:       `<form><input type="email" name="em"><input type="password" name="pw"></form>`,
			expectUser: "em",
			expectPass: "pw",
		},
		{
			// a single anonymous text input is taken as the username
			page:       `<form><input type="text" name="field1"><input type="password" name="field2"></form>`,
			expectUser: "field1",
			expectPass: "field2",
		},
	}

	for _, test := range testCases {
		doc := parseDoc(t, test.page)
		user, pass := findCredentialFields(doc.Find("form"))
		require.Equal(t, test.expectUser, user)
		require.Equal(t, test.expectPass, pass)
	}
}
