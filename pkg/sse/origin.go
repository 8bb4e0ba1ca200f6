package sse

import (
	"net/url"
	"strings"
)

// originValidator checks the Origin header against an allow-list. Browsers
// can be coerced into opening cross-site streams, so a request with a
// disallowed origin is rejected before a session is created.
type originValidator struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginValidator(origins []string) *originValidator {
	v := &originValidator{allowed: make(map[string]struct{})}
	for _, o := range origins {
		if o == "*" {
			v.allowAll = true
			continue
		}
		v.allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	return v
}

// Allow reports whether the given Origin header value is acceptable.
// An absent origin is allowed: non-browser clients do not send one.
func (v *originValidator) Allow(origin string) bool {
	if origin == "" || v.allowAll {
		return true
	}

	normalized := strings.ToLower(strings.TrimSuffix(origin, "/"))
	if _, ok := v.allowed[normalized]; ok {
		return true
	}

	// Loopback origins are allowed regardless of port: local tooling
	// (inspectors, dev clients) connects from arbitrary ports.
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	// Allow-list entries without a port match any port on the same
	// scheme and host.
	bare := u.Scheme + "://" + host
	_, ok := v.allowed[bare]
	return ok
}
