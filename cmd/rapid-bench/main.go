// Command rapid-bench drives a rapid server with a synthetic HTTP
// workload over real sockets — route table, parser, and response
// writer included — and exposes a Prometheus metrics endpoint plus an
// optional pprof endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/httpd-core/rapid/internal/message"
	"github.com/httpd-core/rapid/server"
)

func main() {
	var (
		host     = flag.String("host", "127.0.0.1", "bind host")
		port     = flag.Int("port", 5000, "bind port")
		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "server worker pool size")
		clients  = flag.Int("clients", 2*runtime.GOMAXPROCS(0), "concurrent load-generating goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8081", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	reg := prometheus.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, mux))
	}()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	srv, err := server.New(server.Config{
		Host:       *host,
		Port:       uint16(*port),
		Workers:    *workers,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		log.Fatalf("building server: %v", err)
	}
	registerBenchRoutes(srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	// Give the acceptor a moment to bind before hammering it.
	time.Sleep(100 * time.Millisecond)
	addr := fmt.Sprintf("%s:%d", *host, *port)

	runLoad(addr, *clients, *duration)

	stop()
	if err := <-runErr; err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// registerBenchRoutes installs a small JSON echo route so the load
// generator exercises the route table, request parser, and response
// writer exactly as a real client would.
func registerBenchRoutes(srv *server.Server) {
	_ = srv.Register("/json/{id}", []string{"GET"}, func(req *message.Request) *message.Response {
		resp := message.NewResponse(200, message.ApplicationJSON)
		body := fmt.Sprintf(`{"id":"%s"}`, req.Params["id"])
		resp.InlineBody = &body
		return resp
	})
}

// runLoad fires GET /json/{n} requests from clients goroutines for
// duration and reports throughput.
func runLoad(addr string, clients int, duration time.Duration) {
	if clients <= 0 {
		clients = 1
	}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	var total, errs uint64
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(clients)
	for w := 0; w < clients; w++ {
		go func(id int) {
			defer wg.Done()
			n := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				n++
				resp, err := httpClient.Get(fmt.Sprintf("http://%s/json/%d-%d", addr, id, n))
				atomic.AddUint64(&total, 1)
				if err != nil {
					atomic.AddUint64(&errs, 1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != 200 {
					atomic.AddUint64(&errs, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	fmt.Printf("clients=%d dur=%v ops=%d (%.0f req/s) errors=%d\n",
		clients, elapsed, ops, float64(ops)/elapsed.Seconds(), atomic.LoadUint64(&errs))
}
