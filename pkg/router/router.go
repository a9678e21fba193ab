package router

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// HandlerFunc is the handler signature accepted by the registration methods
type HandlerFunc = http.HandlerFunc

// Router registers handlers on a chi mux and logs every request in color
type Router struct {
	mux    chi.Router
	logger *log.Logger
}

func New() *Router {
	r := &Router{
		mux:    chi.NewRouter(),
		logger: log.New(os.Stderr, "", 0),
	}
	r.mux.Use(r.logRequests)
	r.mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	return r
}

// SetLogger replaces the access logger; nil silences it
func (r *Router) SetLogger(l *log.Logger) {
	r.logger = l
}

// --- Register paths ---
// Paths use chi patterns, e.g. /api/v1/batches/{id}

func (r *Router) GET(path string, handler HandlerFunc)   { r.mux.Get(path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.mux.Post(path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.mux.Put(path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.mux.Patch(path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.mux.Delete(path, handler)
}

// Param returns the named path parameter of the current request
func Param(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// Routes lists the registered routes as "METHOD path"
func (r *Router) Routes() []string {
	var routes []string
	chi.Walk(r.mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	return routes
}

// ServeHTTP makes the router an http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Start server ---
// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if r.logger != nil {
			r.logger.Printf("Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, req)

		if r.logger == nil {
			return
		}
		duration := time.Since(start)
		r.logger.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
			colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			statusColor(lrw.statusCode), lrw.statusCode, colorReset,
			colorBlue, duration, colorReset,
		)
	})
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut:
		return colorYellow
	case http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
