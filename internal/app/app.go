// Package app wires the realm coordination server's components together
// and exposes the single Run(ctx, cfg) entry point, following the
// teacher's internal/app.Run shape: everything overridable for tests is a
// Config field, everything else resolves from the environment.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"realms/server/internal/config"
	"realms/server/internal/dispatch"
	"realms/server/internal/identity"
	"realms/server/internal/net"
	"realms/server/internal/net/ws"
	"realms/server/internal/observability"
	"realms/server/internal/ratelimit"
	"realms/server/internal/registry"
	"realms/server/internal/sessionmanager"
	"realms/server/internal/singleflight"
	"realms/server/internal/store"
	"realms/server/internal/telemetry"
	"realms/server/internal/validate"
	"realms/server/logging"
	loggingSinks "realms/server/logging/sinks"
)

// Config bundles the injectable collaborators. The three external-system
// fields (Verifier, RealmStore, ProfileStore) model out-of-scope
// collaborators per §1 of SPEC_FULL.md; a caller embedding this server
// supplies real implementations. Nil fields fall back to stubs that reject
// everything, so a misconfigured deployment fails loudly instead of
// pretending to work.
type Config struct {
	Logger        telemetry.Logger
	Observability observability.Config

	Verifier     identity.Verifier
	RealmStore   store.RealmStore
	ProfileStore store.ProfileStore

	RateLimits ratelimit.Limits
}

// Run starts the HTTP/websocket server and blocks until it exits or ctx is
// canceled.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	envCfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}
	validate.CoordBound = envCfg.CoordBound

	observabilityCfg := cfg.Observability
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, perr := parseBool(raw); perr == nil {
			observabilityCfg.EnablePprofTrace = value
		} else {
			telemetryLogger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, perr)
		}
	}

	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = envCfg.LogMinSeverity
	logConfig.EnabledSinks = envCfg.LogSinks

	var sinks []logging.NamedSink
	if logConfig.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)})
	}
	if logConfig.HasSink("json") {
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(os.Stdout, logConfig.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = identity.VerifierFunc(nil)
	}
	realmStore := cfg.RealmStore
	if realmStore == nil {
		realmStore = store.RealmStoreFunc(nil)
	}
	profileStore := cfg.ProfileStore
	if profileStore == nil {
		profileStore = store.ProfileStoreFunc(nil)
	}

	wsHandler := ws.NewHandler(router, envCfg.IdleConnectionTimeout, envCfg.MaxConnsPerAddr)

	sessions := sessionmanager.New(envCfg.ProximityRadius, router, wsHandler)
	users := registry.New()
	limiter := ratelimit.New(cfg.RateLimits)
	joinGuard := singleflight.New()

	dispatcher := dispatch.New(sessions, users, verifier, realmStore, profileStore, limiter, joinGuard, wsHandler, router)
	wsHandler.Bind(dispatcher)

	handler := net.NewHTTPHandler(net.HandlerConfig{
		Sessions:      sessions,
		WS:            wsHandler,
		Logger:        fallbackLogger,
		Observability: observabilityCfg,
		Router:        router,
	})

	srv := &http.Server{Addr: envCfg.ListenAddr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

func parseBool(v string) (bool, error) {
	switch v {
	case "1", "true", "TRUE", "True":
		return true, nil
	case "0", "false", "FALSE", "False":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", v)
	}
}
