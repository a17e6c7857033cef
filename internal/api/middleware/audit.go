package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/domain/audit"
)

// AuditSink receives one record per completed request
type AuditSink interface {
	Record(rec audit.Record)
}

// captureWriter tees the response body into a bounded buffer
type captureWriter struct {
	gin.ResponseWriter
	body  bytes.Buffer
	limit int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) capture(b []byte) {
	if room := w.limit - w.body.Len(); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		w.body.Write(b)
	}
}

// Audit records the request once it has completed, whatever the outcome.
// The request body is kept only for mutating methods, the error message only
// for statuses of 400 and above.
func Audit(sink AuditSink, maxBody int) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBody *string
		if mutating(c.Request.Method) && c.Request.Body != nil {
			requestBody = peekBody(c.Request, maxBody)
		}

		writer := &captureWriter{ResponseWriter: c.Writer, limit: maxBody}
		c.Writer = writer

		c.Next()

		status := c.Writer.Status()
		rec := audit.Record{
			Endpoint:    c.Request.URL.Path,
			Method:      c.Request.Method,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			RequestBody: requestBody,
			Status:      status,
			Duration:    time.Since(start),
			CreatedAt:   start,
		}
		if p, ok := Identity(c); ok {
			subject := p.Subject
			rec.UserID = &subject
		}
		if status >= http.StatusBadRequest {
			msg := errorMessage(writer.body.Bytes(), status)
			rec.ErrorMessage = &msg
		}

		sink.Record(rec)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// peekBody reads up to limit bytes and puts them back in front of the
// remaining body so handlers still see the whole request
func peekBody(r *http.Request, limit int) *string {
	head, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	if err != nil || len(head) == 0 {
		return nil
	}
	s := string(head)
	return &s
}

// errorMessage takes the envelope's error field, falling back to the status text
func errorMessage(body []byte, status int) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return http.StatusText(status)
}
