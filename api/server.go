package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/distvote/evote/log"
)

// bufPool reduces allocations for the debug request-body logger.
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// newRouter builds a chi router with the CORS, recovery, throttling and
// debug-logging middleware shared by every HTTP role in this protocol.
func newRouter() *chi.Mux {
	logHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if log.Level() != "debug" || r.URL.Path == PingEndpoint {
				next.ServeHTTP(w, r)
				return
			}

			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "unable to read request body", http.StatusInternalServerError)
				bufPool.Put(buf)
				return
			}
			buf.Write(bodyBytes)

			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", strings.ReplaceAll(buf.String(), "\"", ""),
			)

			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bufPool.Put(buf)

			next.ServeHTTP(w, r)
		})
	}

	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	router.Use(logHandler)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Throttle(100))
	router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	router.Use(middleware.Timeout(45 * time.Second))

	router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	return router
}

// ListenAndServe starts router on host:port in a goroutine, matching the
// teacher's fire-and-forget serve pattern; a fatal bind error kills the
// process via log.Fatalf.
func ListenAndServe(host string, port int, router *chi.Mux) {
	addr := fmt.Sprintf("%s:%d", host, port)
	go func() {
		log.Infow("starting HTTP server", "addr", addr)
		if err := http.ListenAndServe(addr, router); err != nil {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()
}
