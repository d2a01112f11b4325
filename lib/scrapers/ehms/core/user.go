package core

import "strings"

// User holds the portal credentials and the mutable session state
// acquired on login. Login and password are immutable after
// construction; the cookie map is empty until the first successful
// login and is replaced wholesale on every re-login, never merged.
//
// A User is not safe for concurrent use. The fetch engine mutates the
// cookie map without locking, callers issuing concurrent fetches for
// the same user must serialize them externally.
type User struct {
	login    string
	password string
	cookies  map[string]string
}

func NewUser(login, password string) (*User, error) {
	if strings.TrimSpace(login) == "" || strings.TrimSpace(password) == "" {
		return nil, &InvalidCredentialsError{}
	}
	return &User{
		login:    login,
		password: password,
	}, nil
}

func (u *User) Login() string {
	return u.login
}

// SessionCookies returns a copy of the current session cookie map.
func (u *User) SessionCookies() map[string]string {
	out := make(map[string]string, len(u.cookies))
	for k, v := range u.cookies {
		out[k] = v
	}
	return out
}

func (u *User) setSessionCookies(cookies map[string]string) {
	u.cookies = cookies
}
