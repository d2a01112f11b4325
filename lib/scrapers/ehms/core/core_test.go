package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ehms-backend/lib/htmlutil"
	"ehms-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const authedPage = `<html><body><h1>Tablica ogłoszeń</h1><div class="news_item">Zapisy na wf</div></body></html>`
const successPage = `<html><body><h1>Witaj w systemie eHMS</h1></body></html>`
const loginScreenPage = `<html><body><h2>Logowanie do systemu</h2></body></html>`
const captchaPage = `<html><body><h2>Logowanie do systemu</h2><p>Przepisz kod z obrazka</p></body></html>`
const doubleLoginPage = `<html><body><h2>Logowanie do systemu</h2><p>Wykryto podwójne zalogowanie</p></body></html>`

// fakePortal plays the EHMS login handshake: the base page serves the
// login form and issues a session cookie, the login POST activates it,
// the news board page honors activated sessions only.
type fakePortal struct {
	t *testing.T

	mu            sync.Mutex
	validSessions map[string]bool

	// value of the SESSID cookie issued with the login form
	sessionCookie string
	// body returned by the login POST; empty means success page plus
	// session activation
	loginResponse string
	// whether a successful POST actually activates the session
	grantSession bool

	formStatus     int
	postStatus     int
	resourceStatus int

	formGets     int
	posts        int
	resourceGets int
	// login-form GETs that arrived with cookies attached; the real
	// portal grants a fresh session on this request, so it must be
	// cookie-free
	formGetsWithCookies int
}

func newFakePortal(t *testing.T) *fakePortal {
	return &fakePortal{
		t:             t,
		validSessions: map[string]bool{},
		sessionCookie: "abc",
		grantSession:  true,
	}
}

func (p *fakePortal) start() (*Client, func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleBase)
	mux.HandleFunc("/news_board.php", p.handleNewsBoard)
	server := httptest.NewServer(mux)

	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl: server.URL,
	})
	if err != nil {
		server.Close()
		p.t.Fatal(err)
	}
	return client, server.Close
}

func (p *fakePortal) handleBase(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Method == http.MethodGet {
		p.formGets++
		if len(r.Cookies()) > 0 {
			p.formGetsWithCookies++
		}
		if p.formStatus != 0 {
			w.WriteHeader(p.formStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SESSID", Value: p.sessionCookie})
		w.Write(ehmsLoginPageTest)
		return
	}

	p.posts++
	if p.postStatus != 0 {
		w.WriteHeader(p.postStatus)
		return
	}

	if err := r.ParseForm(); err != nil {
		p.t.Errorf("failed to parse login form: %v", err)
	}
	if got := r.PostFormValue("log_form"); got != "yes" {
		p.t.Errorf("expected log_form=yes, got %q", got)
	}
	if got := r.PostFormValue("counter"); got != "77" {
		p.t.Errorf("expected counter=77, got %q", got)
	}
	if got := r.PostFormValue("user123"); got != "jkowalski" {
		p.t.Errorf("expected user123=jkowalski, got %q", got)
	}
	if got := r.PostFormValue("pass456"); got != "hunter2" {
		p.t.Errorf("expected pass456=hunter2, got %q", got)
	}
	cookie, err := r.Cookie("SESSID")
	if err != nil || cookie.Value != p.sessionCookie {
		p.t.Errorf("login POST did not carry the cookies from the form fetch")
	}

	if p.loginResponse != "" {
		w.Write([]byte(p.loginResponse))
		return
	}
	if p.grantSession {
		p.validSessions[p.sessionCookie] = true
	}
	w.Write([]byte(successPage))
}

func (p *fakePortal) handleNewsBoard(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resourceGets++
	if p.resourceStatus != 0 {
		w.WriteHeader(p.resourceStatus)
		return
	}

	cookie, err := r.Cookie("SESSID")
	if err == nil && p.validSessions[cookie.Value] {
		w.Write([]byte(authedPage))
		return
	}
	w.Write([]byte(loginScreenPage))
}

func testUser(t *testing.T) *User {
	user, err := NewUser("jkowalski", "hunter2")
	require.NoError(t, err)
	return user
}

func TestFetchColdStart(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	doc, err := client.Fetch(context.Background(), EndpointNewsBoard, user)
	require.NoError(t, err)

	require.True(t, htmlutil.ContainsText(doc.Selection, "Tablica ogłoszeń"))
	require.Equal(t, map[string]string{"SESSID": "abc"}, user.SessionCookies())
	require.Equal(t, 1, portal.formGets)
	require.Equal(t, 1, portal.posts)
	require.Equal(t, 1, portal.resourceGets)
}

func TestFetchStaleSession(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	user.setSessionCookies(map[string]string{
		"SESSID":    "expired",
		"lb_server": "node3",
	})

	doc, err := client.Fetch(context.Background(), EndpointNewsBoard, user)
	require.NoError(t, err)

	require.True(t, htmlutil.ContainsText(doc.Selection, "Tablica ogłoszeń"))
	// replaced wholesale, the stale load balancer cookie is gone
	require.Equal(t, map[string]string{"SESSID": "abc"}, user.SessionCookies())
	require.Equal(t, 1, portal.posts)
	require.Equal(t, 2, portal.resourceGets)
}

func TestFetchWarmSessionIdempotent(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	portal.validSessions["abc"] = true
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	user.setSessionCookies(map[string]string{"SESSID": "abc"})

	for i := 0; i < 2; i++ {
		doc, err := client.Fetch(context.Background(), EndpointNewsBoard, user)
		require.NoError(t, err)
		require.True(t, htmlutil.ContainsText(doc.Selection, "Tablica ogłoszeń"))
	}

	require.Equal(t, 0, portal.formGets)
	require.Equal(t, 0, portal.posts)
	require.Equal(t, map[string]string{"SESSID": "abc"}, user.SessionCookies())
}

func TestFetchTwoUsersOneClient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	client, stop := portal.start()
	defer stop()

	userA := testUser(t)
	_, err := client.Fetch(context.Background(), EndpointNewsBoard, userA)
	require.NoError(t, err)

	// the portal grants a different session to the next login
	portal.mu.Lock()
	portal.sessionCookie = "def"
	portal.mu.Unlock()

	userB := testUser(t)
	_, err = client.Fetch(context.Background(), EndpointNewsBoard, userB)
	require.NoError(t, err)

	// neither login-form GET may carry the other user's session
	require.Equal(t, 0, portal.formGetsWithCookies)
	require.Equal(t, map[string]string{"SESSID": "abc"}, userA.SessionCookies())
	require.Equal(t, map[string]string{"SESSID": "def"}, userB.SessionCookies())

	// user A's session is still warm, no extra login
	_, err = client.Fetch(context.Background(), EndpointNewsBoard, userA)
	require.NoError(t, err)
	require.Equal(t, 2, portal.posts)
}

func TestFetchBadCredentials(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	portal.loginResponse = loginScreenPage
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

	var credsErr *InvalidCredentialsError
	require.ErrorAs(t, err, &credsErr)
	require.Equal(t, "jkowalski", credsErr.Login)
	require.Empty(t, user.SessionCookies())
}

func TestFetchRateLimited(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	portal.loginResponse = captchaPage
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

	var rateErr *RateLimitExceededError
	require.ErrorAs(t, err, &rateErr)
	require.Equal(t, "jkowalski", rateErr.Login)
	require.Empty(t, user.SessionCookies())
	require.Equal(t, 1, portal.posts)
}

func TestFetchConcurrentSession(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	portal := newFakePortal(t)
	portal.loginResponse = doubleLoginPage
	client, stop := portal.start()
	defer stop()

	user := testUser(t)
	_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

	var concurrentErr *ConcurrentSessionError
	require.ErrorAs(t, err, &concurrentErr)
	require.Equal(t, "jkowalski", concurrentErr.Login)
	require.Empty(t, user.SessionCookies())
}

func TestFetchAuthenticationLoop(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	t.Run("cold start", func(t *testing.T) {
		portal := newFakePortal(t)
		portal.grantSession = false
		client, stop := portal.start()
		defer stop()

		user := testUser(t)
		_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

		require.ErrorIs(t, err, ErrAuthenticationLoop)
		require.Equal(t, 1, portal.posts)
	})

	t.Run("stale session", func(t *testing.T) {
		portal := newFakePortal(t)
		portal.grantSession = false
		client, stop := portal.start()
		defer stop()

		user := testUser(t)
		user.setSessionCookies(map[string]string{"SESSID": "expired"})
		_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

		require.ErrorIs(t, err, ErrAuthenticationLoop)
		// one re-login, no third attempt
		require.Equal(t, 1, portal.posts)
		require.Equal(t, 2, portal.resourceGets)
	})
}

func TestFetchUnexpectedStatus(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ehms/core")
	defer cleanup()

	t.Run("resource request", func(t *testing.T) {
		portal := newFakePortal(t)
		portal.validSessions["abc"] = true
		portal.resourceStatus = http.StatusInternalServerError
		client, stop := portal.start()
		defer stop()

		user := testUser(t)
		user.setSessionCookies(map[string]string{"SESSID": "abc"})
		_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusInternalServerError, statusErr.Code)
	})

	t.Run("login form fetch", func(t *testing.T) {
		portal := newFakePortal(t)
		portal.formStatus = http.StatusServiceUnavailable
		client, stop := portal.start()
		defer stop()

		user := testUser(t)
		_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
		require.Equal(t, 0, portal.resourceGets)
	})

	t.Run("login post", func(t *testing.T) {
		portal := newFakePortal(t)
		portal.postStatus = http.StatusBadGateway
		client, stop := portal.start()
		defer stop()

		user := testUser(t)
		_, err := client.Fetch(context.Background(), EndpointNewsBoard, user)

		var statusErr *UnexpectedStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusBadGateway, statusErr.Code)
		require.Empty(t, user.SessionCookies())
	})
}
