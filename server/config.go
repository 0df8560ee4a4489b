package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config enumerates the host-supplied configuration. Unlike
// bytecache.Config, the zero value is safe: every unset field is
// normalized to its default (Workers=10, MaxPayloadMB=512, the 5s
// timeouts, KeepAliveMax=10, upload dir "input_files", CacheTotalMB=400
// over CacheShards=10).
type Config struct {
	// Host and Port are the bind address. Port 0 asks the OS for an
	// available port.
	Host string
	Port uint16

	// Workers is the fixed worker-pool size. Default 10.
	Workers int

	// MaxPayloadMB bounds Content-Length; requests over it fail
	// PayloadTooLarge (413). Default 512.
	MaxPayloadMB int

	// ReadTimeoutS/WriteTimeoutS bound every socket read/write.
	// Default 5s each.
	ReadTimeoutS  uint8
	WriteTimeoutS uint8

	// KeepAliveTimeoutS is advertised in the Keep-Alive header; it does
	// not independently re-arm ReadTimeoutS (every read is bounded by
	// the same read timeout, keep-alive or not). Default 5.
	KeepAliveTimeoutS uint8
	// KeepAliveMax bounds the keep-alive request-response cycles that
	// may follow the first one on a connection. Default 10.
	KeepAliveMax uint8

	// UploadDirName names the directory, relative to the process's
	// working directory, that streamed request bodies are written
	// under. Default "input_files".
	UploadDirName string

	// CacheTotalMB/CacheShards size the sharded byte cache backing file
	// responses. CacheTotalMB must be divisible by CacheShards.
	// Defaults 400/10.
	CacheTotalMB int
	CacheShards  int

	// TextualMemoryLimitBytes is the Content-Length boundary below
	// which a textual body is read into memory instead of streamed to
	// disk. Defaults to 0, i.e. every textual body goes to disk unless
	// the host raises it.
	TextualMemoryLimitBytes int64

	// Logger receives structured logs from the acceptor, worker pool,
	// and connection driver. Default zap.NewNop() (silent).
	Logger *zap.Logger

	// Registerer, if non-nil, causes Server to register a
	// metrics.prom.ServerAdapter against it (request counts by method
	// and status class, active-connection gauge). Nil disables server
	// metrics entirely; it does not affect cache metrics, which a host
	// wires separately into bytecache.Config.
	Registerer prometheus.Registerer
}

func (c Config) normalize() Config {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.MaxPayloadMB <= 0 {
		c.MaxPayloadMB = 512
	}
	if c.ReadTimeoutS == 0 {
		c.ReadTimeoutS = 5
	}
	if c.WriteTimeoutS == 0 {
		c.WriteTimeoutS = 5
	}
	if c.KeepAliveTimeoutS == 0 {
		c.KeepAliveTimeoutS = 5
	}
	if c.KeepAliveMax == 0 {
		c.KeepAliveMax = 10
	}
	if c.UploadDirName == "" {
		c.UploadDirName = "input_files"
	}
	if c.CacheTotalMB <= 0 {
		c.CacheTotalMB = 400
	}
	if c.CacheShards <= 0 {
		c.CacheShards = 10
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) readTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutS) * time.Second
}

func (c Config) writeTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutS) * time.Second
}

func (c Config) keepAliveTimeout() time.Duration {
	return time.Duration(c.KeepAliveTimeoutS) * time.Second
}

func (c Config) maxPayloadBytes() int64 { return int64(c.MaxPayloadMB) << 20 }
func (c Config) cacheTotalBytes() int64 { return int64(c.CacheTotalMB) << 20 }
