package core

import (
	"ehms-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Markers is the set of literal phrases the portal renders to signal
// authentication state. Detection is exact, case-sensitive substring
// containment over text nodes; the portal exposes no other signal.
// The phrases are configuration so a portal change is a one-line edit.
type Markers struct {
	NotAuthenticated  string
	RateLimited       string
	ConcurrentSession string
}

var DefaultMarkers = Markers{
	NotAuthenticated:  "Logowanie do systemu",
	RateLimited:       "Przepisz kod z obrazka",
	ConcurrentSession: "Wykryto podwójne zalogowanie",
}

type LoginState int

const (
	LoginOk LoginState = iota
	LoginRateLimited
	LoginConcurrentSession
	LoginBadCredentials
)

// Authenticated reports whether the document shows requested content
// rather than the login screen. On resource responses this is the only
// classification that matters.
func (m Markers) Authenticated(doc *goquery.Document) bool {
	return !htmlutil.ContainsText(doc.Selection, m.NotAuthenticated)
}

// ClassifyLogin inspects the body of a login POST response. The
// rate-limit and concurrent-session markers are only meaningful while
// the not-authenticated marker persists; they are mutually exclusive
// by server design. Neither present means the credentials were wrong.
func (m Markers) ClassifyLogin(doc *goquery.Document) LoginState {
	if !htmlutil.ContainsText(doc.Selection, m.NotAuthenticated) {
		return LoginOk
	}
	if htmlutil.ContainsText(doc.Selection, m.RateLimited) {
		return LoginRateLimited
	}
	if htmlutil.ContainsText(doc.Selection, m.ConcurrentSession) {
		return LoginConcurrentSession
	}
	return LoginBadCredentials
}
