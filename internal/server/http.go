package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/0xReLogic/colofail/internal/logging"
	"github.com/0xReLogic/colofail/internal/registry"
	"github.com/0xReLogic/colofail/internal/tracing"
)

// Gate answers GET / and resolves the country used in request logs.
type Gate interface {
	http.Handler
	Country(r *http.Request) string
}

// HTTPServer serves the gate on "/" next to the operational endpoints.
type HTTPServer struct {
	ListenAddr string
	Gate       Gate
	// Registry backs /registry and /healthz
	Registry registry.Store

	server     *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewHTTPServer wires the gate and registry into a server listening on listenAddr.
func NewHTTPServer(listenAddr string, gate Gate, reg registry.Store) *HTTPServer {
	s := &HTTPServer{ListenAddr: listenAddr, Gate: gate, Registry: reg}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.server = &http.Server{
		Addr:              listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end on shutdown so injected delays stop early
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colofail_http_requests_total",
			Help: "Total number of HTTP requests handled by colofail",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colofail_http_request_latency_seconds",
			Help:    "Latency of HTTP requests handled by colofail, including injected delays",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// instrument wraps h with request IDs, a span, structured logging and metrics.
func (s *HTTPServer) instrument(route string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.NewRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx, span := tracing.StartSpan(logging.WithRequestID(r.Context(), requestID), "http_request")
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("request.id", requestID),
		)
		r = r.WithContext(ctx)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		latency := time.Since(start)

		span.SetAttributes(
			attribute.Int("http.status_code", rec.status),
			attribute.Int64("http.response.size", int64(rec.size)),
			attribute.Float64("http.duration_ms", float64(latency.Milliseconds())),
		)
		// gate failures set their own span status
		if rec.status >= 400 && rec.status != http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		country := ""
		if s.Gate != nil {
			country = s.Gate.Country(r)
		}
		logging.LogHTTPRequest(ctx, r.Method, r.URL.Path, country, strconv.Itoa(rec.status), latency.Milliseconds(), int64(rec.size))

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestLatency.WithLabelValues(r.Method, route).Observe(latency.Seconds())
	})
}

// Handler builds the routing table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.instrument("/", s.Gate))
	mux.Handle("GET /registry", s.instrument("/registry", http.HandlerFunc(s.handleRegistry)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *HTTPServer) handleRegistry(w http.ResponseWriter, r *http.Request) {
	fc, err := s.Registry.Load(r.Context())
	if err != nil {
		logging.LogStoreError(r.Context(), "load", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_ = json.NewEncoder(w).Encode(fc)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.Registry.Load(ctx); err != nil {
		logging.LogStoreError(ctx, "health", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Start listens on ListenAddr and serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	l, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called.
func (s *HTTPServer) Serve(l net.Listener) error {
	logging.LogHTTPServerStart(l.Addr().String())

	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, ends pending delays and waits for
// in-flight responses until ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.cancelBase()
	return s.server.Shutdown(ctx)
}
