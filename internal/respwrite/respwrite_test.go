package respwrite

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/httpd-core/rapid/bytecache"
	"github.com/httpd-core/rapid/internal/message"
)

func newCache(t *testing.T) *bytecache.ShardedCache {
	t.Helper()
	c, err := bytecache.New(bytecache.Config{TotalBytes: 1 << 20, Shards: 2})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func TestSendInline_WritesStatusLineHeadersAndBody(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := &Writer{Conn: server, Protocol: message.HTTP11, WriteTimeout: time.Second, Cache: newCache(t)}
	resp := message.NewResponse(200, message.ApplicationJSON)
	resp.InlineBody = strPtr(`{"Foo":"Bar","Dummy":5}`)
	resp.Headers["id"] = "5"
	resp.Headers["name"] = "rony"

	go func() {
		status, err := w.Send(resp, "")
		require.NoError(t, err)
		require.Equal(t, 200, status)
		server.Close()
	}()

	raw := readAll(t, client)

	require.Contains(t, raw, "HTTP/1.1 200 OK\r\n")
	require.Contains(t, raw, "Content-Type: application/json\r\n")
	require.Contains(t, raw, "id: 5\r\n")
	require.Contains(t, raw, "name: rony\r\n")
	require.Contains(t, raw, "\r\n\r\n{\"Foo\":\"Bar\",\"Dummy\":5}")
}

func TestSendFile_FirstRequestIncludesEtagAndBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download.bin")
	content := []byte("file contents for download")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := &Writer{Conn: server, Protocol: message.HTTP11, WriteTimeout: time.Second, SendBufferSize: 4, Cache: newCache(t)}
	resp := message.NewResponse(200, message.ApplicationOctetStream)
	resp.FilePath = &path

	statusCh := make(chan int, 1)
	go func() {
		status, err := w.Send(resp, "")
		require.NoError(t, err)
		statusCh <- status
		server.Close()
	}()

	raw := readAll(t, client)
	require.Equal(t, 200, <-statusCh)
	require.Contains(t, raw, "Etag: ")
	require.Contains(t, raw, string(content))
}

func TestSendFile_ServesCachedBytesWhenSizesMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download.bin")
	content := []byte("cached file body")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cache := newCache(t)
	cache.Insert(path, content)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := &Writer{Conn: server, Protocol: message.HTTP11, WriteTimeout: time.Second, SendBufferSize: 4, Cache: cache}
	resp := message.NewResponse(200, message.ApplicationOctetStream)
	resp.FilePath = &path

	statusCh := make(chan int, 1)
	go func() {
		status, err := w.Send(resp, "")
		require.NoError(t, err)
		statusCh <- status
		server.Close()
	}()

	raw := readAll(t, client)
	require.Equal(t, 200, <-statusCh)
	require.Contains(t, raw, string(content))
	require.Contains(t, raw, fmt.Sprintf("Content-Length: %d", len(content)))
}

func TestSendFile_IfNoneMatchReturns304(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "download.bin")
	content := []byte("unchanged file")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	etag := fmt.Sprintf("%d@%d", info.ModTime().Unix(), len(content))

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	w := &Writer{Conn: server, Protocol: message.HTTP11, WriteTimeout: time.Second, Cache: newCache(t)}
	resp := message.NewResponse(200, message.ApplicationOctetStream)
	resp.FilePath = &path

	statusCh := make(chan int, 1)
	go func() {
		status, err := w.Send(resp, etag)
		require.NoError(t, err)
		statusCh <- status
		server.Close()
	}()

	raw := readAll(t, client)
	require.Equal(t, 304, <-statusCh)
	require.Contains(t, raw, "304 Not Modified")
	require.Contains(t, raw, "Etag: ")
	require.NotContains(t, raw, "Content-Length")
}

func TestFillGroup_DropsDuplicateInFlightFills(t *testing.T) {
	var g fillGroup

	started := make(chan struct{})
	release := make(chan struct{})
	ran := make(chan struct{}, 2)

	go g.do("k", func() {
		close(started)
		<-release
		ran <- struct{}{}
	})
	<-started

	// Second fill for the same key while the first is still running:
	// dropped, not queued.
	g.do("k", func() { ran <- struct{}{} })
	close(release)

	<-ran
	select {
	case <-ran:
		t.Fatal("duplicate in-flight fill must not run")
	case <-time.After(50 * time.Millisecond):
	}

	// Once the first fill finishes, the key is free again.
	g.do("k", func() { ran <- struct{}{} })
	<-ran
}

// readAll reads from conn until its peer closes (io.EOF or any other
// read error, since net.Pipe surfaces a closed peer as io.ErrClosedPipe
// rather than a plain EOF on some reads).
func readAll(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	br := bufio.NewReader(conn)
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := br.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return string(buf)
}
