package server

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/temirov/ctrlcv/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(status int) {
	recorder.status = status
	recorder.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latency per route.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		startTime := time.Now()
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		next.ServeHTTP(recorder, request)
		metrics.RecordHTTPRequest(request.Method, routeLabel(request.URL.Path), recorder.status, time.Since(startTime))
	})
}

// allowCrossOrigin answers preflight requests and sets the
// Access-Control-Allow-* headers for the configured origins.
func allowCrossOrigin(origins []string) func(http.Handler) http.Handler {
	policy := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{headerContentType},
		OptionsSuccessStatus: http.StatusOK,
	})
	return policy.Handler
}

func routeLabel(path string) string {
	switch path {
	case rootPath, treePath, convertPath, fetchRepositoryPath, metricsPath:
		return path
	default:
		return "other"
	}
}
