package a2a

import (
	"context"
	"strings"
	"sync"
)

// HeaderExtensions carries the extension URIs a caller supports, and on
// responses the ones the server activated.
const HeaderExtensions = "X-A2A-Extensions"

// ExtensionSet is an ordered set of extension URIs.
type ExtensionSet struct {
	uris []string
}

func NewExtensionSet(uris ...string) ExtensionSet {
	var s ExtensionSet
	s.Add(uris...)
	return s
}

// ParseExtensions splits a comma separated header value.
func ParseExtensions(header string) ExtensionSet {
	var s ExtensionSet
	for _, u := range strings.Split(header, ",") {
		s.Add(u)
	}
	return s
}

// Add appends uris not already present. Blank entries are ignored.
func (s *ExtensionSet) Add(uris ...string) {
	for _, u := range uris {
		u = strings.TrimSpace(u)
		if u == "" || s.Contains(u) {
			continue
		}
		s.uris = append(s.uris, u)
	}
}

func (s ExtensionSet) Contains(uri string) bool {
	for _, u := range s.uris {
		if u == uri {
			return true
		}
	}
	return false
}

// Union returns s followed by the members of other it lacks.
func (s ExtensionSet) Union(other ExtensionSet) ExtensionSet {
	out := NewExtensionSet(s.uris...)
	out.Add(other.uris...)
	return out
}

func (s ExtensionSet) Len() int { return len(s.uris) }

func (s ExtensionSet) List() []string {
	return append([]string(nil), s.uris...)
}

// String renders the header value.
func (s ExtensionSet) String() string {
	return strings.Join(s.uris, ", ")
}

// CallContext tracks extension negotiation for one inbound call.
type CallContext struct {
	mu        sync.Mutex
	requested ExtensionSet
	activated ExtensionSet
}

func NewCallContext(requested ExtensionSet) *CallContext {
	return &CallContext{requested: requested}
}

func (c *CallContext) Requested() ExtensionSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewExtensionSet(c.requested.uris...)
}

func (c *CallContext) IsRequested(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested.Contains(uri)
}

// Activate records that the server used an extension while serving the call.
func (c *CallContext) Activate(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activated.Add(uri)
}

func (c *CallContext) Activated() ExtensionSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewExtensionSet(c.activated.uris...)
}

type callContextKey struct{}

func WithCallContext(ctx context.Context, c *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, c)
}

// CallContextFrom returns the call context stored in ctx, if any.
func CallContextFrom(ctx context.Context) (*CallContext, bool) {
	c, ok := ctx.Value(callContextKey{}).(*CallContext)
	return c, ok && c != nil
}
