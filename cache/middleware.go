package cache

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheMiddleware caches rendered post pages for anonymous visitors.
// Requests carrying a session cookie bypass the cache entirely: the page
// never varies per viewer today, but logged-in traffic is small and this
// keeps the invariant cheap to reason about. API routes are never cached;
// feed, like and related reads always recompute from the store.
func CacheMiddleware(sessionCookie string, maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != "GET" {
			c.Next()
			return
		}

		postID, ok := postIDFromPath(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		if _, err := c.Request.Cookie(sessionCookie); err == nil {
			c.Next()
			return
		}

		if cached, found := ReadCache(postID, maxAge); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/html") {
			WriteCache(postID, writer.body.String())
		}
	}
}

// postIDFromPath matches /post/:id and returns the id segment.
func postIDFromPath(path string) (string, bool) {
	rest, found := strings.CutPrefix(path, "/post/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
