package web

import (
	"net/http"
	"net/url"
	"strings"
)

// IdentityLoader resolves the current user for a request, typically from
// a session key. A nil user means anonymous.
type IdentityLoader func(r *http.Request, s *Session) (any, error)

// CurrentUser returns the user resolved by the identity loader, or nil.
// The loader runs at most once per request. Loader errors are logged and
// treated as anonymous; use LoadUser to see them.
func CurrentUser(r *http.Request) any {
	user, err := LoadUser(r)
	if err != nil {
		return nil
	}
	return user
}

// LoadUser is CurrentUser with the loader's error.
func LoadUser(r *http.Request) (any, error) {
	st := stateFrom(r.Context())
	if st == nil || st.rt.Loader == nil {
		return nil, nil
	}
	if !st.userLoaded {
		st.userLoaded = true
		st.user, st.userErr = st.rt.Loader(r, SessionFrom(r))
		if st.userErr != nil {
			st.rt.Logger.Warn().Err(st.userErr).Msg("identity loader failed")
			st.user = nil
		}
	}
	return st.user, st.userErr
}

// LoginRequired rejects anonymous requests. See PermissionRequired.
func LoginRequired(next http.Handler) http.Handler {
	return PermissionRequired(func(any) bool { return true })(next)
}

// PermissionRequired lets a request through only if there is a current
// user and check accepts it.
//
// Anonymous GET and HEAD requests are redirected to the login URL with a
// next parameter (the full URL when the login URL is absolute). Everything
// else is answered with 403.
func PermissionRequired(check func(user any) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					if target, ok := loginRedirect(r); ok {
						http.Redirect(w, r, target, http.StatusFound)
						return
					}
				}
			} else if check(user) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func loginRedirect(r *http.Request) (string, bool) {
	st := stateFrom(r.Context())
	if st == nil || st.rt.LoginURL == "" {
		return "", false
	}

	login := st.rt.LoginURL
	if strings.Contains(login, "?") {
		return login, true
	}

	next := r.URL.RequestURI()
	if u, err := url.Parse(login); err == nil && u.Scheme != "" {
		next = fullURL(r)
	}
	return login + "?" + url.Values{"next": {next}}.Encode(), true
}

func fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
