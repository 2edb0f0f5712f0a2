package apiclient

import (
	"log"
	"time"
)

// requestLogger writes one line per request and response, prefixed with the resource.
type requestLogger struct {
	*log.Logger
}

func (l requestLogger) request(resource, method, path string, params map[string]string) {
	if l.Logger == nil {
		return
	}
	if len(params) > 0 {
		l.Printf("[%s] %s %s params=%v", resource, method, path, params)
	} else {
		l.Printf("[%s] %s %s", resource, method, path)
	}
}

func (l requestLogger) response(resource string, statusCode int, duration time.Duration) {
	if l.Logger == nil {
		return
	}
	l.Printf("[%s] response status=%d duration=%dms", resource, statusCode, duration.Milliseconds())
}

func (l requestLogger) cacheHit(resource, key string) {
	if l.Logger == nil {
		return
	}
	l.Printf("[%s] cache hit %s", resource, key)
}

func (l requestLogger) failure(resource, operation string, err error) {
	if l.Logger == nil {
		return
	}
	l.Printf("[%s] %s error: %v", resource, operation, err)
}
