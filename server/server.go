package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/imrenagi/vod-upload-relay/api/vod"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Opts struct {
	Addr         string
	ServiceName  string
	OTLPEndpoint string

	ReadHeaderTimeout time.Duration
	// ReadTimeout and WriteTimeout bound a whole chunk relay, so they must
	// cover the slowest expected chunk plus the upstream round trip.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	GracefulShutdownPeriod time.Duration
}

func DefaultOpts() Opts {
	return Opts{
		Addr:                   ":8080",
		ServiceName:            "vod-upload-relay",
		ReadHeaderTimeout:      5 * time.Second,
		ReadTimeout:            5 * time.Minute,
		WriteTimeout:           5 * time.Minute,
		IdleTimeout:            30 * time.Second,
		GracefulShutdownPeriod: 30 * time.Second,
	}
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

func New(opts Opts, ctrl vod.Controller, deps ...Pinger) Server {
	return Server{
		opts: opts,
		ctrl: ctrl,
		deps: deps,
	}
}

type Server struct {
	opts Opts
	ctrl vod.Controller
	deps []Pinger
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("starting server")

	prometheusExporter, err := NewPrometheusExporter()
	if err != nil {
		return err
	}
	meterShutdownFn, err := InitMeterProvider(ctx, s.opts.ServiceName, prometheusExporter)
	if err != nil {
		return err
	}
	shutdownFns := []ShutdownFn{meterShutdownFn}

	if s.opts.OTLPEndpoint != "" {
		traceExporter, err := NewOTLPTraceExporter(ctx, s.opts.OTLPEndpoint)
		if err != nil {
			return err
		}
		traceShutdownFn, err := InitTraceProvider(ctx, s.opts.ServiceName, traceExporter)
		if err != nil {
			return err
		}
		shutdownFns = append(shutdownFns, traceShutdownFn)
	}

	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting http server on %s", s.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Warn().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.GracefulShutdownPeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server gracefully")
	}
	log.Warn().Msg("http server gracefully stopped")

	for _, fn := range shutdownFns {
		if err := fn(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry provider")
		}
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(
		otelhttp.NewMiddleware("vod-relay"),
		LogInterceptor)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/healthz", otelhttp.WithRouteTag("/healthz", s.healthz())).Methods(http.MethodGet)
	s.ctrl.Routes(router)
	return router
}

type health struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		code, body := http.StatusOK, health{Status: "ok"}
		for _, dep := range s.deps {
			if err := dep.Ping(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("health check failed")
				code, body = http.StatusServiceUnavailable, health{Status: "unavailable", Error: err.Error()}
				break
			}
		}

		b, _ := json.Marshal(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write(b)
	}
}
