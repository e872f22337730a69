// Package app wires the authcore process: config, logging, storage, the
// Session Manager and its HTTP and NATS transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	authapi "authcore/cmd/internal/auth/api"
	"authcore/cmd/internal/auth/natsrpc"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/internal/cache"
	"authcore/cmd/security/token"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App owns every long-lived resource of the process.
type App struct {
	cfg Config
	log *zap.Logger

	store    *backend
	registry *prometheus.Registry
	manager  *session.Manager
	auth     *authapi.Handler

	redis *redis.Client
	nc    *nats.Conn
	subs  []*nats.Subscription
}

// New constructs a fully wired App. Resources opened before a failure are
// released before returning.
func New(ctx context.Context, cfg Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err = ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.store, err = openBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	codec, err := token.NewCodec(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	metrics, err := session.NewMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("session metrics: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(log.Named("session")),
		session.WithMetrics(metrics),
		session.WithRefreshHashKey(refreshHashKey(cfg)),
	}

	switch cfg.Denylist {
	case DenylistMemory:
		opts = append(opts, session.WithDenylist(session.NewMemoryDenylist(nil)))
	case DenylistRedis:
		a.redis, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		var deny *cache.RedisDenylist
		deny, err = cache.NewRedisDenylist(a.redis, cache.WithLogger(log.Named("denylist")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithDenylist(deny))
	}

	a.manager, err = session.NewManager(cfg.Session, a.store.users, a.store.sessions, codec, cfg.Password, opts...)
	if err != nil {
		return nil, err
	}

	a.auth, err = authapi.NewHandler(log.Named("http"), a.manager, cfg.API)
	if err != nil {
		return nil, err
	}

	if cfg.NATSURL != "" {
		if err = a.connectNATS(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *App) connectNATS() error {
	nc, err := nats.Connect(a.cfg.NATSURL,
		nats.Name("authcore"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			a.log.Warn("nats.disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			a.log.Info("nats.reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	a.nc = nc

	responder, err := natsrpc.NewResponder(a.manager,
		natsrpc.WithLogger(a.log.Named("nats")),
		natsrpc.WithTimeout(a.cfg.NATSRequestTimeout),
		natsrpc.WithLoginLimit(a.cfg.NATSLoginLimit, a.cfg.NATSLoginWindow),
	)
	if err != nil {
		return err
	}
	a.subs, err = responder.Subscribe(nc, a.cfg.NATSQueue)
	if err != nil {
		return err
	}

	a.log.Info("nats.subscribed", zap.String("queue", a.cfg.NATSQueue), zap.Strings("subjects", natsrpc.Subjects))
	return nil
}

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.store, a.registry, a.auth)
	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error. Every resource is released before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	jctx, stopJanitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runJanitor(jctx, a.log, a.manager, a.cfg.PurgeInterval, a.cfg.PurgeRetention)
	}()
	defer func() {
		stopJanitor()
		wg.Wait()
	}()

	a.log.Info("server.start",
		zap.String("addr", a.cfg.HTTPAddr),
		zap.String("storage", a.store.kind),
		zap.String("denylist", a.cfg.Denylist),
		zap.Bool("nats", a.nc != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", zap.String("reason", "context_done"))
	case err := <-errCh:
		a.log.Error("server.fail", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", zap.Error(err))
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// close releases resources in reverse order of acquisition. NATS is drained
// first so in-flight requests finish against open stores.
func (a *App) close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warn("nats.drain.fail", zap.Error(err))
		}
		a.nc = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis.close.fail", zap.Error(err))
		}
		a.redis = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("store.close.fail", zap.Error(err))
		}
		a.store = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
