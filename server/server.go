package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/httpd-core/rapid/bytecache"
	"github.com/httpd-core/rapid/internal/connio"
	"github.com/httpd-core/rapid/internal/httprouter"
	"github.com/httpd-core/rapid/internal/netio"
	"github.com/httpd-core/rapid/internal/reqparse"
	"github.com/httpd-core/rapid/internal/workerpool"
	pmet "github.com/httpd-core/rapid/metrics/prom"
	"github.com/prometheus/client_golang/prometheus"
)

// newPromMetrics builds the server-side Prometheus adapter, registered
// under the "rapid"/"server" namespace/subsystem so it never collides
// with a host's own cache-metrics registration under the same registry.
func newPromMetrics(reg prometheus.Registerer) *pmet.ServerAdapter {
	return pmet.NewServerAdapter(reg, "rapid", "server", nil)
}

// Handler is the signature a registered route's handler must satisfy,
// re-exported from internal/connio so host programs never need to
// import an internal package.
type Handler = connio.Handler

// Server hosts a route table, a sharded byte cache, a fixed worker pool,
// and the acceptor that binds them to a listening socket. A Server is
// built once via New, routes are registered before Run, and Run blocks
// (serving connections) until its context is cancelled.
type Server struct {
	cfg   Config
	table *httprouter.Table
	cache *bytecache.ShardedCache
	pool  *workerpool.Pool

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server from cfg, normalizing unset fields to their
// defaults and constructing the sharded byte cache per cfg.CacheTotalMB/
// cfg.CacheShards. It returns an error only if the cache sizing is
// invalid (CacheTotalMB not divisible by CacheShards).
func New(cfg Config) (*Server, error) {
	cfg = cfg.normalize()

	bc, err := bytecache.New(bytecache.Config{
		TotalBytes: cfg.cacheTotalBytes(),
		Shards:     cfg.CacheShards,
	})
	if err != nil {
		return nil, fmt.Errorf("server: building byte cache: %w", err)
	}

	return &Server{
		cfg:   cfg,
		table: httprouter.New(),
		cache: bc,
		pool:  workerpool.New(cfg.Workers, cfg.Logger),
	}, nil
}

// Register binds pattern to handler for methods, delegating to the
// route table. An empty methods slice defaults to {"GET"}.
func (s *Server) Register(pattern string, methods []string, handler Handler) error {
	_, err := s.table.Register(pattern, methods, handler)
	return err
}

// Cache exposes the underlying sharded byte cache, e.g. for a host that
// wants to wire a metrics.prom.BytecacheAdapter after construction but
// before Run, or to pre-warm it.
func (s *Server) Cache() *bytecache.ShardedCache { return s.cache }

// Run binds the configured address and serves accepted connections on
// the worker pool until ctx is cancelled, then drains in-flight work
// and returns. Cancelling ctx is the graceful-shutdown trigger; a host
// typically derives ctx from signal.NotifyContext.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	sendBufferSize := 64 * 1024
	if tcpLn, ok := ln.(*net.TCPListener); ok {
		sendBufferSize = netio.SendBufferSize(tcpLn)
	}

	s.cfg.Logger.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.cfg.Workers),
		zap.Int("send_buffer_size", sendBufferSize),
	)

	env := &connio.Env{
		Table: s.table,
		Cache: s.cache,
		Limits: reqparse.Limits{
			MaxPayloadBytes:    s.cfg.maxPayloadBytes(),
			TextualMemoryLimit: s.cfg.TextualMemoryLimitBytes,
			UploadDir:          s.cfg.UploadDirName,
			ReadTimeout:        s.cfg.readTimeout(),
		},
		Host:             ln.Addr().String(),
		ReadTimeout:      s.cfg.readTimeout(),
		WriteTimeout:     s.cfg.writeTimeout(),
		KeepAliveTimeout: s.cfg.keepAliveTimeout(),
		KeepAliveMax:     int(s.cfg.KeepAliveMax),
		SendBufferSize:   sendBufferSize,
		Logger:           s.cfg.Logger,
	}
	if s.cfg.Registerer != nil {
		env.Metrics = newPromMetrics(s.cfg.Registerer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.acceptLoop(gctx, env)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.cfg.Logger.Info("shutdown requested, closing listener")
		return ln.Close()
	})

	err = g.Wait()
	s.pool.Shutdown()
	if err != nil && ctx.Err() != nil {
		// The listener close that accompanies a requested shutdown
		// surfaces as a "use of closed network connection" error from
		// Accept; that is the expected unblock mechanism, not a failure.
		return nil
	}
	return err
}

// acceptLoop submits a job to the worker pool for each accepted
// connection, driving it through internal/connio to completion. It
// returns nil once the listener is closed (the expected shutdown path)
// and a non-nil error for any other Accept failure.
func (s *Server) acceptLoop(ctx context.Context, env *connio.Env) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if isClosedListener(err) {
				return nil
			}
			s.cfg.Logger.Warn("accept failed", zap.Error(err))
			continue
		}
		s.pool.Submit(func() {
			connio.Handle(conn, env)
		})
	}
}

func isClosedListener(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
