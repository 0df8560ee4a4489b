// Package connio implements the per-connection driver: it parses one
// request at a time off a connection, dispatches it to the matched
// route handler, writes the response, and decides whether to keep the
// connection open for another iteration. Handle is a bounded loop — the
// first request plus at most KeepAliveMax keep-alive follow-ups per
// connection.
package connio

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/httpd-core/rapid/bytecache"
	"github.com/httpd-core/rapid/internal/httprouter"
	"github.com/httpd-core/rapid/internal/message"
	"github.com/httpd-core/rapid/internal/netio"
	"github.com/httpd-core/rapid/internal/reqerr"
	"github.com/httpd-core/rapid/internal/reqparse"
	"github.com/httpd-core/rapid/internal/respwrite"
)

// Handler is the concrete signature a route's handler must satisfy. The
// route table stores handlers as `any`; connio type-asserts them back
// to Handler before invoking them.
type Handler func(req *message.Request) *message.Response

// Metrics receives per-connection and per-request observability signals.
// A nil Env.Metrics disables instrumentation entirely; server.Server
// wires metrics.prom.ServerAdapter here when the host enables it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RequestHandled(method string, status int)
}

// Env bundles everything a connection needs that is shared across every
// connection the server drives: the immutable route table, the shared
// byte cache, size/timeout limits, and the logger.
type Env struct {
	Table  *httprouter.Table
	Cache  *bytecache.ShardedCache
	Limits reqparse.Limits

	Host string

	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	KeepAliveTimeout time.Duration
	KeepAliveMax     int
	SendBufferSize   int

	Logger  *zap.Logger
	Metrics Metrics
}

// Handle drives conn for its entire lifetime: one request per iteration,
// up to env.KeepAliveMax keep-alive iterations, closing the connection
// itself before returning.
func Handle(conn net.Conn, env *Env) {
	defer conn.Close()

	if env.Metrics != nil {
		env.Metrics.ConnectionOpened()
		defer env.Metrics.ConnectionClosed()
	}

	lr := netio.NewLineReader(conn, env.ReadTimeout)
	budget := env.KeepAliveMax
	isFirst := true

	for {
		keepAlive, ok := handleOne(conn, lr, env, isFirst)
		if !ok || !keepAlive || budget <= 0 {
			return
		}
		budget--
		isFirst = false
	}
}

// handleOne runs exactly one parse/dispatch/respond cycle. ok is false
// when the connection must close regardless of keep-alive (parse
// failure, fatal write error, or client disconnect).
func handleOne(conn net.Conn, lr *netio.LineReader, env *Env, isFirst bool) (keepAlive bool, ok bool) {
	req, route, perr := reqparse.Parse(lr, env.Table, env.Limits)
	if perr != nil {
		if perr.Kind != reqerr.ClientDisconnected {
			_ = perr.Send(conn, string(message.HTTP11), env.WriteTimeout)
			logParseFailure(env, perr)
		}
		return false, false
	}

	handler, assigned := route.Handler.(Handler)
	if !assigned {
		err := reqerr.New(reqerr.RequestReadError, "route has no handler attached.")
		_ = err.Send(conn, string(req.Protocol), env.WriteTimeout)
		return false, false
	}

	clientWantsKeepAlive := wantsKeepAlive(req, isFirst)

	resp := handler(req)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Host"] = env.Host

	keepAlive = clientWantsKeepAlive && resp.KeepAlive
	if keepAlive && isFirst {
		resp.Headers["Connection"] = "keep-alive"
		resp.Headers["Keep-Alive"] = fmt.Sprintf("timeout=%d, max=%d", int(env.KeepAliveTimeout.Seconds()), env.KeepAliveMax)
	} else if !keepAlive {
		resp.Headers["Connection"] = "close"
	}

	ifNoneMatch, _ := req.Header("If-None-Match")

	w := &respwrite.Writer{
		Conn:           conn,
		Protocol:       req.Protocol,
		WriteTimeout:   env.WriteTimeout,
		SendBufferSize: env.SendBufferSize,
		Cache:          env.Cache,
	}
	status, err := w.Send(resp, ifNoneMatch)
	if err != nil {
		logWriteFailure(env, err)
		return false, false
	}
	if env.Metrics != nil {
		env.Metrics.RequestHandled(req.Method, status)
	}

	return keepAlive, true
}

// wantsKeepAlive determines the client's keep-alive intent: on the
// first request it depends on the protocol version and any explicit
// Connection header; every subsequent request on the same connection is
// already in a keep-alive sequence by definition.
func wantsKeepAlive(req *message.Request, isFirst bool) bool {
	if !isFirst {
		return true
	}
	conn, has := req.Header("Connection")
	if !has {
		return req.Protocol == message.HTTP11
	}
	// A present Connection header only opts in with the exact
	// "keep-alive" token; any other value (including unrecognized ones)
	// means close, regardless of protocol version.
	return strings.EqualFold(strings.TrimSpace(conn), "keep-alive")
}

func logParseFailure(env *Env, err *reqerr.Error) {
	if env.Logger == nil {
		return
	}
	env.Logger.Debug("request parse failed", zap.String("kind", err.Kind.String()), zap.Int("status", err.Status), zap.String("message", err.Message))
}

func logWriteFailure(env *Env, err error) {
	if env.Logger == nil {
		return
	}
	env.Logger.Warn("response write failed", zap.Error(err))
}
