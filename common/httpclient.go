package common

import (
	"net/http"
)

// WrapHTTPClient puts wrap in front of the client's transport.
func WrapHTTPClient(client *http.Client, wrap func(req *http.Request, next http.RoundTripper) (*http.Response, error)) {
	if client == nil {
		return
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	client.Transport = roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return wrap(req, base)
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// UserAgent sets the user agent and, if token is not empty, a bearer token
// on every request that does not carry them yet.
func UserAgent(agent, token string) func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	return func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
		if req.Header.Get("User-Agent") != "" && (token == "" || req.Header.Get("Authorization") != "") {
			return next.RoundTrip(req)
		}
		// a RoundTripper must not modify the request it was given
		req = req.Clone(req.Context())
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", agent)
		}
		if token != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return next.RoundTrip(req)
	}
}
