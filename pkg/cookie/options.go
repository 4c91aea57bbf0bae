package cookie

import (
	"net/http"
	"time"
)

// Options are the attributes applied to built cookies
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
	// Now, when set together with a positive MaxAge, also emits Expires
	// for clients that ignore Max-Age.
	Now time.Time
}

type Option func(*Options)

func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

func WithDomain(domain string) Option {
	return func(o *Options) {
		o.Domain = domain
	}
}

func WithMaxAge(seconds int) Option {
	return func(o *Options) {
		o.MaxAge = seconds
	}
}

func WithSecure(secure bool) Option {
	return func(o *Options) {
		o.Secure = secure
	}
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) {
		o.HttpOnly = httpOnly
	}
}

func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) {
		o.SameSite = sameSite
	}
}

// WithMaxAgeDuration sets Max-Age from a duration, rounded down to seconds.
// Positive durations last at least one second. Non-positive durations
// produce a browser-session cookie.
func WithMaxAgeDuration(d time.Duration) Option {
	return func(o *Options) {
		if d <= 0 {
			o.MaxAge = 0
			return
		}
		o.MaxAge = max(int(d/time.Second), 1)
	}
}

// WithIssuedAt sets the time Expires is computed from
func WithIssuedAt(now time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// applyOptions creates a new Options struct by copying the base options
// and applying the provided option functions. The base options are not modified.
func applyOptions(base Options, opts []Option) Options {
	// Explicit struct copy ensures base options are immutable
	result := Options{
		Path:     base.Path,
		Domain:   base.Domain,
		MaxAge:   base.MaxAge,
		Secure:   base.Secure,
		HttpOnly: base.HttpOnly,
		SameSite: base.SameSite,
		Now:      base.Now,
	}

	for _, opt := range opts {
		opt(&result)
	}

	return result
}
