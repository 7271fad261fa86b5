package client

import (
	"net/http"

	"github.com/kmjones1979/ampersend-sdk/a2a"
)

// ExtensionsTransport declares extension support on every outgoing request
// through the X-A2A-Extensions header.
type ExtensionsTransport struct {
	Base       http.RoundTripper
	Extensions []string
}

func (t *ExtensionsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if len(t.Extensions) == 0 {
		return base.RoundTrip(req)
	}

	merged := a2a.NewExtensionSet(t.Extensions...).Union(a2a.ParseExtensions(req.Header.Get(a2a.HeaderExtensions)))
	out := req.Clone(req.Context())
	out.Header.Set(a2a.HeaderExtensions, merged.String())
	return base.RoundTrip(out)
}

// NewHTTPClient returns a copy of base (or a fresh client) that declares the
// x402 extension on every request.
func NewHTTPClient(base *http.Client) *http.Client {
	var c http.Client
	if base != nil {
		c = *base
	}
	c.Transport = &ExtensionsTransport{Base: c.Transport, Extensions: []string{a2a.X402ExtensionURI}}
	return &c
}
