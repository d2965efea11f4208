package middleware

import "net/http"

// statusWriter wraps http.ResponseWriter to capture the status code and body
// size. It delegates Flush and Unwrap so SSE streaming keeps working.
type statusWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

// Flush implements http.Flusher, required for streaming responses.
func (sw *statusWriter) Flush() {
	_ = sw.FlushError()
}

// FlushError flushes and reports failures, letting http.ResponseController
// surface a closed connection to streaming handlers.
func (sw *statusWriter) FlushError() error {
	sw.wroteHeader = true
	return http.NewResponseController(sw.ResponseWriter).Flush()
}

// Unwrap returns the underlying ResponseWriter so http.ResponseController
// can discover optional interfaces on the original writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
