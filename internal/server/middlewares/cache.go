package middleware

// This in-memory cache keeps serialized endpoint responses between the
// scheduled updates. golang-lru evicts the least recently accessed
// entries; Purge is called after every refresh so dashboards never see
// stale data.

import (
	"bytes"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
)

var cache *lru.Cache

// InitializeCache sets up the in-memory LRU response cache.
func InitializeCache(size int) error {
	var err error
	cache, err = lru.New(size)
	return err
}

// PurgeCache drops all cached responses.
func PurgeCache() {
	if cache != nil {
		cache.Purge()
	}
}

type cachedResponse struct {
	contentType string
	body        []byte
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Cache serves successful GET responses from the LRU cache, keyed by the
// full request URI.
func Cache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cache == nil || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.RequestURI()
		if entry, ok := cache.Get(key); ok {
			resp := entry.(cachedResponse)
			if resp.contentType != "" {
				w.Header().Set("Content-Type", resp.contentType)
			}
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(resp.body)
			return
		}

		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		if cw.status == http.StatusOK {
			cache.Add(key, cachedResponse{
				contentType: cw.Header().Get("Content-Type"),
				body:        cw.buf.Bytes(),
			})
		}
	})
}
