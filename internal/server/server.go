package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tabularium/tabularium"
	"github.com/tabularium/tabularium/internal/auth"
	"github.com/tabularium/tabularium/internal/health"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/metrics"
	"github.com/tabularium/tabularium/internal/records"
)

// DefaultAllowedOrigins is used when no CORS origins are configured: the development
// server of the browser front end
var DefaultAllowedOrigins = []string{"http://localhost:5173"}

// Server is the development implementation of the Tabularium API
type Server struct {
	http.Handler
}

func New(authServer *auth.Server, recordsServer *records.Server, healthServer *health.Server, gatherer prometheus.Gatherer, allowedOrigins []string, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)

	r := mux.NewRouter()
	r.Path(tabularium.PathLiveness).Methods("GET").HandlerFunc(healthServer.ServeLiveness)
	r.Path("/status").Methods("GET").HandlerFunc(healthServer.ServeStatus)
	if gatherer != nil {
		r.Path("/metrics").Methods("GET").Handler(metrics.Handler(gatherer))
	}

	authServer.RegisterRoutes(r.PathPrefix("/auth").Subrouter())

	// Every record endpoint requires a valid access token
	api := r.PathPrefix(tabularium.PathAPI).Subrouter()
	api.Use(authServer.Middleware)
	recordsServer.RegisterRoutes(api)

	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", tabularium.RequestIdHeader},
		ExposedHeaders: []string{tabularium.RequestIdHeader},
		MaxAge:         600,
	})
	return &Server{
		Handler: logRequests(logger, c.Handler(r)),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: res, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		logger.Info("handled request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("requestId", req.Header.Get(tabularium.RequestIdHeader)),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
