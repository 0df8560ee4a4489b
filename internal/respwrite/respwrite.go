// Package respwrite implements the response writer: header-block
// serialization, inline and file bodies, conditional GET via ETag, and
// cache-assisted file streaming. Concurrent cache fills for one file
// path collapse into a single insert.
package respwrite

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/httpd-core/rapid/bytecache"
	"github.com/httpd-core/rapid/internal/message"
	"github.com/httpd-core/rapid/internal/netio"
)

// fillGroup keeps at most one cache fill in flight per file path. A
// fill arriving while another for the same path is running is dropped
// outright rather than queued: the cache is best-effort and the racing
// fills carry identical bytes, so there is no result to share and
// nothing to wait for.
type fillGroup struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

// do runs fn unless a fill for key is already running, in which case it
// returns immediately without running fn.
func (g *fillGroup) do(key string, fn func()) {
	g.mu.Lock()
	if g.inFlight == nil {
		g.inFlight = make(map[string]bool)
	}
	if g.inFlight[key] {
		g.mu.Unlock()
		return
	}
	g.inFlight[key] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
	}()
	fn()
}

// fills coalesces cache-fill inserts across every Writer: N simultaneous
// cache misses for one file produce one insert, not N racing ones.
var fills fillGroup

// Writer serializes and transmits responses for one connection.
type Writer struct {
	Conn           net.Conn
	Protocol       message.Protocol
	WriteTimeout   time.Duration
	SendBufferSize int
	Cache          *bytecache.ShardedCache
}

// Send serializes resp and writes it to the connection. ifNoneMatch is
// the request's If-None-Match header value, if any. It returns the
// status code that was actually sent (useful for access logging) and
// any fatal write error — once the header block has been written, a
// write error is fatal for the connection.
func (w *Writer) Send(resp *message.Response, ifNoneMatch string) (int, error) {
	if resp.FilePath != nil {
		return w.sendFile(resp, ifNoneMatch)
	}
	return w.sendInline(resp)
}

func (w *Writer) sendInline(resp *message.Response) (int, error) {
	body := ""
	if resp.InlineBody != nil {
		body = *resp.InlineBody
	}
	length := int64(len(body))
	resp.ContentLength = &length

	header := w.renderHeader(resp)
	buf := make([]byte, 0, len(header)+len(body))
	buf = append(buf, header...)
	buf = append(buf, body...)

	if err := netio.WriteAll(w.Conn, buf, w.WriteTimeout); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func (w *Writer) sendFile(resp *message.Response, ifNoneMatch string) (int, error) {
	f, err := os.Open(*resp.FilePath)
	if err != nil {
		return 0, fmt.Errorf("respwrite: opening %s: %w", *resp.FilePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("respwrite: stat %s: %w", *resp.FilePath, err)
	}
	size := info.Size()
	etag := fmt.Sprintf("%d@%d", info.ModTime().Unix(), size)

	if ifNoneMatch != "" && ifNoneMatch == etag {
		return w.sendNotModified(etag)
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Etag"] = etag
	if resp.FileDisplayName != nil {
		resp.Headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", *resp.FileDisplayName)
	}
	resp.ContentLength = &size
	header := w.renderHeader(resp)

	// Non-blocking lookup: a contended shard is treated as a miss and the
	// body streams from disk instead, so one hot shard never stalls an
	// unrelated response.
	if cached, _, ok, _ := w.Cache.TryGet(*resp.FilePath); ok && int64(len(cached)) == size {
		if err := netio.WriteAll(w.Conn, header, w.WriteTimeout); err != nil {
			return resp.StatusCode, err
		}
		if err := netio.WriteAllSize(w.Conn, cached, w.SendBufferSize, w.WriteTimeout); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}

	if err := netio.WriteAll(w.Conn, header, w.WriteTimeout); err != nil {
		return resp.StatusCode, err
	}

	var accumulated bytes.Buffer
	tee := io.TeeReader(f, &accumulated)
	if err := netio.CopyAllSize(w.Conn, tee, w.SendBufferSize, w.WriteTimeout); err != nil {
		return resp.StatusCode, err
	}

	path := *resp.FilePath
	body := accumulated.Bytes()
	go func() {
		// Best-effort: a failed or contended cache insert never affects
		// the response already on the wire.
		fills.do(path, func() {
			_ = w.Cache.TryInsert(path, body)
		})
	}()

	return resp.StatusCode, nil
}

func (w *Writer) sendNotModified(etag string) (int, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s 304 Not Modified\r\n", w.Protocol)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Etag: %s\r\n", etag)
	b.WriteString("\r\n")

	if err := netio.WriteAll(w.Conn, b.Bytes(), w.WriteTimeout); err != nil {
		return 304, err
	}
	return 304, nil
}

// renderHeader builds the status line, Date, user headers, Content-Type,
// and the blank line terminating the header block.
func (w *Writer) renderHeader(resp *message.Response) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", w.Protocol, resp.StatusCode, reasonPhrase(resp.StatusCode))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))

	for k, v := range resp.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}

	fmt.Fprintf(&b, "Content-Type: %s\r\n", resp.ContentType.MIME())
	if resp.ContentLength != nil {
		fmt.Fprintf(&b, "Content-Length: %s\r\n", strconv.FormatInt(*resp.ContentLength, 10))
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

func reasonPhrase(status int) string {
	switch status {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 304:
		return "Not Modified"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 500:
		return "Internal Server Error"
	default:
		return "OK"
	}
}
