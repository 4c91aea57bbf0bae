// Package cookie builds, reads and clears HTTP cookies from a shared set of
// default attributes.
//
// The session manager uses it to issue session-id cookies: the cookie value
// is the raw session id, so integrity comes from the id being unguessable
// rather than from signing.
//
// # Usage
//
//	import "github.com/dmitrymomot/clustersession/pkg/cookie"
//
//	man := cookie.New(cookie.WithDomain("example.com"))
//
//	c := man.Build("sid", id,
//	    cookie.WithMaxAgeDuration(time.Hour),
//	    cookie.WithIssuedAt(time.Now()),
//	)
//	http.SetCookie(w, c)
//
//	id, err := man.Get(r, "sid")
//	if errors.Is(err, cookie.ErrCookieNotFound) {
//	    // no session yet
//	}
//
//	man.Delete(w, "sid")
//
// # Defaults
//
// Unless overridden, cookies are scoped to "/", HttpOnly and SameSite=Lax.
// A zero MaxAge produces a browser-session cookie.
package cookie
