package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	c "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/echo-statements/pkg/interceptors"
)

const requestIDHeader = "X-Request-ID"

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	tracer := otel.GetTracerProvider().Tracer("echo-statements/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor(requestIDHeader),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		chain = append(chain, interceptors.NewRateLimitInterceptor(limiter))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
	)
	if deps.RPCMetrics != nil {
		chain = append(chain, deps.RPCMetrics.Interceptor())
	}

	opts := []connect.HandlerOption{
		connect.WithInterceptors(chain...),
		connect.WithReadMaxBytes(maxRequestBytes(deps)),
	}

	// Register Connect RPC routes
	registerConnectRoutes(mux, deps, opts...)

	// Register health and metrics routes
	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods(),
		AllowedHeaders:   append(c.AllowedHeaders(), requestIDHeader),
		ExposedHeaders:   append(c.ExposedHeaders(), requestIDHeader),
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(mux)
}

// maxRequestBytes bounds a request body: every file at its limit, base64
// encoded, plus headroom for the envelope.
func maxRequestBytes(deps *Dependencies) int {
	files := int64(max(deps.Config.Import.MaxFiles, 1))
	return int(files*deps.Config.Import.MaxFileBytes*4/3) + 1<<20
}

// registerConnectRoutes registers all Connect RPC services
func registerConnectRoutes(mux *http.ServeMux, deps *Dependencies, opts ...connect.HandlerOption) {
	if deps.ImportHandler != nil {
		path := deps.ImportHandler.Register(mux, opts...)
		deps.Logger.Info("registered Connect RPC service", "path", path)
	}

	if deps.BalanceHandler != nil {
		path := deps.BalanceHandler.Register(mux, opts...)
		deps.Logger.Info("registered Connect RPC service", "path", path)
	}

	deps.Logger.Info("Connect RPC routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{"db": {Status: "ok"}}
		code := http.StatusOK

		if deps.DB == nil {
			result["db"] = status{Status: "skipped", Detail: "no database configured"}
		} else if err := deps.DB.Health(); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled && deps.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
