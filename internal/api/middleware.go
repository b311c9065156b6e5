package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/observability"
)

// requestIDHeader carries the request id on both sides of the wire.
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware honors an inbound request id or mints a UUID, and
// echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggingMiddleware logs request completion with latency and status.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id":  c.GetString("request_id"),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

// MetricsMiddleware records Prometheus request metrics. The model label is
// probed from the body via gjson without a full decode, or taken from the
// path for Gemini-style URLs.
func MetricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/v1") {
			c.Next()
			return
		}

		model := c.Param("model")
		if model == "" && c.Request.Body != nil {
			if body, err := peekBody(c); err == nil {
				model = gjson.GetBytes(body, "model").String()
			}
		}
		if model == "" {
			model = "unknown"
		}

		metrics.RequestStarted()
		start := time.Now()
		c.Next()
		metrics.RequestFinished()

		metrics.RecordRequest(model, path, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// peekBody reads and restores the request body.
func peekBody(c *gin.Context) ([]byte, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// GzipMiddleware compresses JSON responses when the client accepts gzip.
// SSE responses are never compressed; they must flush per event.
func GzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") ||
			c.GetHeader("Accept") == "text/event-stream" ||
			gjson.GetBytes(peekStreamFlag(c), "stream").Bool() {
			c.Next()
			return
		}

		gz := gzip.NewWriter(c.Writer)
		defer func() {
			_ = gz.Close()
			c.Header("Content-Length", "")
		}()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, gz: gz}
		c.Next()
	}
}

func peekStreamFlag(c *gin.Context) []byte {
	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return nil
	}
	body, err := peekBody(c)
	if err != nil {
		return nil
	}
	return body
}

type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.gz.Write([]byte(s))
}

// RecoveryMiddleware renders panics as a generic 500 error body. It runs
// innermost-first on unwind, so the tracking middleware's deferred
// decrement still fires.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.Request.URL.Path,
			"panic":      recovered,
		}).Error("handler panicked")
		err := apierr.Internal("internal server error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, err.ToResponse())
	})
}
