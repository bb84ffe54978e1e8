package httpx

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level         int // Compression level (1-9, where 6 is default)
	MinSize       int // Minimum response size to compress (bytes, 0 = always compress)
	writerPool    *gzipWriterPool
	compressTypes map[string]bool
	Logger        *slog.Logger
}

// gzipWriterPool manages a pool of gzip writers for reuse.
type gzipWriterPool struct {
	pools map[int]*gzipLevelPool
}

type gzipLevelPool struct {
	level int
	pool  *sync.Pool
}

func newGzipWriterPool() *gzipWriterPool {
	return &gzipWriterPool{
		pools: make(map[int]*gzipLevelPool),
	}
}

func (p *gzipWriterPool) get(level int) *gzip.Writer {
	pool := p.ensureLevelPool(level)
	if writer := p.tryGetWriter(pool); writer != nil {
		return writer
	}
	return newGzipWriter(level)
}

func (p *gzipWriterPool) put(w *gzip.Writer, level int) {
	if pool, ok := p.pools[level]; ok {
		w.Reset(io.Discard)
		pool.pool.Put(w)
	}
}

func getDefaultCompressibleTypes() map[string]bool {
	return map[string]bool{
		"text/plain":             true,
		"text/xml":               true,
		"text/javascript":        true,
		"application/javascript": true,
		"application/json":       true,
		"application/xml":        true,
	}
}

// Compression returns a middleware that compresses HTTP responses using gzip.
// It compresses responses only when:
// - Client accepts gzip encoding (via Accept-Encoding header).
// - Content-Type is compressible (application/json, text/plain, etc.).
// - Response status is not 1xx, 204, or 304.
// - Request method is not HEAD.
// - Response size exceeds MinSize threshold (if configured).
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.writerPool == nil {
		cfg.writerPool = newGzipWriterPool()
	}
	if cfg.compressTypes == nil {
		cfg.compressTypes = getDefaultCompressibleTypes()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if client accepts gzip encoding (with basic q-value handling)
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			// Skip compression for HEAD requests
			if r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			// Wrap response writer to intercept writes and decide compression at WriteHeader time
			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				request:        r,
				config:         &cfg,
				minSize:        cfg.MinSize,
			}

			// Add Vary header for cache compatibility
			w.Header().Add("Vary", "Accept-Encoding")

			next.ServeHTTP(gzw, r)

			// Ensure gzip writer is closed if it was used
			if gzw.gzipWriter != nil {
				if err := gzw.gzipWriter.Close(); err != nil {
					cfg.Logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
				}
				cfg.writerPool.put(gzw.gzipWriter, cfg.Level)
			}
		})
	}
}

// acceptsGzip checks if the client accepts gzip encoding, respecting q-values.
func acceptsGzip(acceptEncoding string) bool {
	if acceptEncoding == "" {
		return false
	}

	// Simple parsing: check for "gzip" and ensure it's not explicitly disabled with q=0
	parts := strings.Split(acceptEncoding, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)

		// Check if this part contains "gzip"
		if !strings.Contains(strings.ToLower(part), "gzip") {
			continue
		}

		// Extract encoding name (before any semicolon)
		encoding := part
		if idx := strings.Index(part, ";"); idx != -1 {
			encoding = strings.TrimSpace(part[:idx])
		}

		if strings.ToLower(encoding) != "gzip" {
			continue
		}

		// Check for explicit q=0 or q=0.0 (disabled)
		// This is a simple check - a full RFC implementation would parse q-values properly
		if strings.Contains(part, "q=0.0") || strings.Contains(part, "q=0;") || strings.HasSuffix(part, "q=0") {
			return false
		}
		return true
	}
	return false
}

// isCompressibleContentType checks if the content type should be compressed.
func isCompressibleContentType(contentType string, compressTypes map[string]bool) bool {
	// Extract media type without parameters (e.g., "application/json; charset=utf-8" -> "application/json")
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	return compressTypes[contentType]
}

// gzipResponseWriter wraps http.ResponseWriter to compress response body.
type gzipResponseWriter struct {
	http.ResponseWriter
	request         *http.Request
	config          *CompressionConfig
	gzipWriter      *gzip.Writer
	headerWritten   bool
	shouldCompress  bool
	minSize         int
	bufferedContent []byte
}

func (p *gzipWriterPool) ensureLevelPool(level int) *gzipLevelPool {
	if pool, ok := p.pools[level]; ok {
		return pool
	}

	newPool := &gzipLevelPool{
		level: level,
		pool: &sync.Pool{
			New: func() interface{} {
				return newGzipWriter(level)
			},
		},
	}
	p.pools[level] = newPool
	return newPool
}

func (p *gzipWriterPool) tryGetWriter(pool *gzipLevelPool) *gzip.Writer {
	w := pool.pool.Get()
	if w == nil {
		return nil
	}

	writer, ok := w.(*gzip.Writer)
	if !ok {
		return nil
	}

	return writer
}

func newGzipWriter(level int) *gzip.Writer {
	w, err := gzip.NewWriterLevel(io.Discard, level)
	if err != nil {
		return gzip.NewWriter(io.Discard)
	}

	return w
}

// WriteHeader decides whether to compress based on status code, content-type, and existing encoding.
func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	// Don't compress for certain status codes
	if statusCode < 200 || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}

	// Don't compress if Content-Encoding is already set
	if w.Header().Get("Content-Encoding") != "" {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}

	// Check if content type is compressible
	contentType := w.Header().Get("Content-Type")
	switch {
	case contentType == "":
		// If no content-type set yet, we'll need to buffer and decide later
		// For now, assume compressible and let Write handle it
		w.shouldCompress = true
	case !isCompressibleContentType(contentType, w.config.compressTypes):
		w.ResponseWriter.WriteHeader(statusCode)
		return
	default:
		w.shouldCompress = true
	}

	// If we should compress, initialize the gzip writer
	if w.shouldCompress {
		w.gzipWriter = w.config.writerPool.get(w.config.Level)
		w.gzipWriter.Reset(w.ResponseWriter)

		// Set compression headers
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length") // Length will change after compression
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

// Write compresses data if compression is enabled.
func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		// If content-type not set, try to detect it
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}

	// Handle minimum size threshold
	if w.minSize > 0 && w.gzipWriter != nil && len(w.bufferedContent) < w.minSize {
		w.bufferedContent = append(w.bufferedContent, b...)
		if len(w.bufferedContent) < w.minSize {
			return len(b), nil
		}
		// Threshold reached, write buffered content
		_, err := w.gzipWriter.Write(w.bufferedContent)
		w.bufferedContent = nil
		return len(b), err
	}

	if w.gzipWriter != nil {
		return w.gzipWriter.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for streaming support.
func (w *gzipResponseWriter) Flush() {
	if w.gzipWriter != nil {
		if err := w.gzipWriter.Flush(); err != nil {
			w.config.Logger.ErrorContext(w.request.Context(), "flushing gzip writer failed", "error", err)
		}
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket support.
func (w *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}

// Push implements http.Pusher for HTTP/2 server push support.
func (w *gzipResponseWriter) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := w.ResponseWriter.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return errors.New("http.Pusher not supported")
}
