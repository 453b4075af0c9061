package middleware

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.n += n
	return n, err
}

// Logging logs one entry per request. A nil Logger means the standard one.
type Logging struct {
	Logger *log.Logger
}

func (l *Logging) Handler(next http.Handler) http.Handler {
	logger := l.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		entry := logger.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"bytes":    sw.n,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		})
		if sw.status >= 500 {
			entry.Error("HTTP request")
		} else {
			entry.Info("HTTP request")
		}
	})
}
