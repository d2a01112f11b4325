package core

import (
	"github.com/PuerkitoBio/goquery"
)

// loginForm is a snapshot of the portal's login page, the two
// credential field names and the rotating counter token. The portal
// regenerates all three per page load, so a snapshot is extracted
// fresh on every login attempt and never cached.
type loginForm struct {
	usernameField string
	passwordField string
	counter       string
}

// extractLoginForm discovers the form fields by position: the first
// two form-control inputs are username and password, the second
// hidden input carries the anti-automation counter.
func extractLoginForm(doc *goquery.Document) (loginForm, error) {
	inputs := doc.Find("input.form-control")
	if inputs.Length() < 2 {
		return loginForm{}, &LoginFormError{Reason: "fewer than 2 form-control inputs"}
	}

	usernameField := inputs.Eq(0).AttrOr("name", "")
	passwordField := inputs.Eq(1).AttrOr("name", "")
	if usernameField == "" || passwordField == "" {
		return loginForm{}, &LoginFormError{Reason: "credential input without a name attribute"}
	}

	hidden := doc.Find("input[type=hidden]")
	if hidden.Length() < 2 {
		return loginForm{}, &LoginFormError{Reason: "fewer than 2 hidden inputs"}
	}

	return loginForm{
		usernameField: usernameField,
		passwordField: passwordField,
		counter:       hidden.Eq(1).AttrOr("value", ""),
	}, nil
}

func (f loginForm) payload(login, password string) map[string]string {
	return map[string]string{
		f.usernameField: login,
		f.passwordField: password,
		"log_form":      "yes",
		"counter":       f.counter,
	}
}
