// Package ginext binds A2A extension negotiation to Gin handlers.
package ginext

import (
	"github.com/gin-gonic/gin"

	"github.com/kmjones1979/ampersend-sdk/a2a"
)

// CallContextKey is the gin key holding the request's *a2a.CallContext.
const CallContextKey = "a2a_call_context"

// Extensions parses the X-A2A-Extensions request header into an
// *a2a.CallContext, available from the request context and the gin keys.
// Extensions activated while handling the request are echoed in the same
// response header.
func Extensions() gin.HandlerFunc {
	return func(c *gin.Context) {
		call := a2a.NewCallContext(a2a.ParseExtensions(c.GetHeader(a2a.HeaderExtensions)))
		c.Request = c.Request.WithContext(a2a.WithCallContext(c.Request.Context(), call))
		c.Set(CallContextKey, call)
		c.Writer = &stampingWriter{ResponseWriter: c.Writer, call: call}
		c.Next()
	}
}

// CallContext returns the call context installed by Extensions.
func CallContext(c *gin.Context) (*a2a.CallContext, bool) {
	v, ok := c.Get(CallContextKey)
	if !ok {
		return nil, false
	}
	call, ok := v.(*a2a.CallContext)
	return call, ok
}

// stampingWriter sets the activated extensions header before the status line
// goes out.
type stampingWriter struct {
	gin.ResponseWriter
	call    *a2a.CallContext
	stamped bool
}

func (w *stampingWriter) stamp() {
	if w.stamped || w.ResponseWriter.Written() {
		return
	}
	w.stamped = true
	if activated := w.call.Activated(); activated.Len() > 0 {
		w.Header().Set(a2a.HeaderExtensions, activated.String())
	}
}

func (w *stampingWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *stampingWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *stampingWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *stampingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
