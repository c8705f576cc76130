package playground

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kroma-labs/relay/httpclient"
)

// App runs the demo API and the client demo against it.
type App struct {
	cfg     Config
	logger  zerolog.Logger
	metrics *Metrics
	api     *API
	tp      *sdktrace.TracerProvider
}

// NewApp creates an App from cfg.
func NewApp(cfg Config, logger zerolog.Logger) *App {
	m := NewMetrics()
	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		api:     NewAPI(cfg, logger.With().Str("component", "api").Logger(), m),
		tp:      newTracerProvider(logger),
	}
}

// Run starts the demo API, runs the demo once and, when cfg.Serve is set,
// keeps serving until ctx is done. The server is always shut down gracefully.
func (a *App) Run(ctx context.Context) (err error) {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("playground: listen on %s: %w", a.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           a.api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("demo api listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer func() {
		err = errors.Join(err, a.shutdown(srv))
	}()

	breaker, closeStore := breakerOption(a.cfg, a.logger)
	defer func() {
		if cerr := closeStore(); cerr != nil {
			a.logger.Warn().Err(cerr).Msg("close breaker store")
		}
	}()

	baseURL := "http://" + ln.Addr().String() + a.cfg.APIPrefix
	clientLogger := a.logger.With().Str("component", "client").Logger()
	client := NewClient(a.cfg, baseURL, clientLogger,
		httpclient.WithTracerProvider(a.tp),
		breaker,
	)
	demo := NewDemo(NewFactory(client, clientLogger), a.metrics, a.logger)

	res, err := demo.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("user", res.User.Name).
		Str("created", res.Created.Name).
		Str("survivor", res.Survivor.Name).
		Str("warned", res.Warned.Name).
		Int("blob_bytes", len(res.Blob)).
		AnErr("slow", res.SlowErr).
		Msg("demo finished")

	if !a.cfg.Serve {
		return nil
	}

	a.logger.Info().
		Str("metrics", "http://"+ln.Addr().String()+"/metrics").
		Msg("serving until interrupted")
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		a.logger.Info().Err(ctx.Err()).Msg("context cancelled, shutting down")
		return nil
	}
}

func (a *App) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		errs = append(errs, err, srv.Close())
	}
	errs = append(errs, a.tp.Shutdown(ctx))

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.logger.Info().Msg("server stopped gracefully")
	return nil
}

// Metrics returns the Prometheus instruments of the app.
func (a *App) Metrics() *Metrics {
	return a.metrics
}
