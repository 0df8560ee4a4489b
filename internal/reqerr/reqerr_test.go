package reqerr

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		RequestTimedout:       408,
		RequestNotHttp:        413,
		RequestDataNotUTF8:    413,
		InvalidContentLength:  411,
		ContentTypeRequired:   400,
		ContentNotSupported:   415,
		PayloadTooLarge:       413,
		MethodNotSupported:    405,
		MethodNotAllowed:      405,
		ResourceNotFound:      404,
		CannotWriteDataToDisk: 500,
		RequestBodyNotRead:    500,
		RequestReadError:      500,
	}
	for kind, status := range cases {
		e := New(kind, "x")
		require.Equal(t, status, e.Status, "kind %s", kind)
	}
}

func TestMethodNotAllowedError_Message(t *testing.T) {
	e := MethodNotAllowedError("POST")
	require.Equal(t, "Method POST not allowed.", e.Message)
	require.Equal(t, 405, e.Status)
}

func TestRender_IncludesStatusDateAndBody(t *testing.T) {
	e := New(ResourceNotFound, "no such route")
	out := string(e.Render("HTTP/1.1", time.Now()))

	require.True(t, strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n"))
	require.Contains(t, out, "Date: ")
	require.Contains(t, out, "Content-Length: 13\r\n")
	require.True(t, strings.HasSuffix(out, "no such route"))
}

func TestSend_WritesRenderedResponse(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	e := New(PayloadTooLarge, "too big")
	done := make(chan error, 1)
	go func() { done <- e.Send(server, "HTTP/1.1", time.Second) }()

	buf := make([]byte, len(e.Render("HTTP/1.1", time.Now()))+10)
	n, _ := client.Read(buf)
	require.NoError(t, <-done)
	require.Contains(t, string(buf[:n]), "413 Payload Too Large")
}
