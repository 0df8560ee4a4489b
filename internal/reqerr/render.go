package reqerr

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/httpd-core/rapid/internal/netio"
)

// reasonPhrase gives the standard reason phrase for the status codes this
// taxonomy can produce.
func reasonPhrase(status int) string {
	switch status {
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Supported"
	case 408:
		return "Request Timeout"
	case 411:
		return "Length Required"
	case 413:
		return "Payload Too Large"
	case 415:
		return "Unsupported Media Type"
	case 500:
		return "Internal Server Error"
	default:
		return "Error"
	}
}

// Render serializes e as a minimal, self-contained HTTP response:
// status line, Date, Content-Type, Content-Length, then the message as
// the body. The header skeleton is the same on every call and only the
// status line, Date and Content-Length vary, so there is no
// precomputed-template cache.
func (e *Error) Render(proto string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", proto, e.Status, reasonPhrase(e.Status))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123))
	b.WriteString("Content-Type: text/plain\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(e.Message))
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	b.WriteString(e.Message)
	return b.Bytes()
}

// Send renders e and writes it to conn, honoring the same write-timeout
// discipline as the normal response path (internal/netio.WriteAll).
func (e *Error) Send(conn net.Conn, proto string, writeTimeout time.Duration) error {
	return netio.WriteAll(conn, e.Render(proto, time.Now()), writeTimeout)
}
