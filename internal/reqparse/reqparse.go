// Package reqparse implements the request parser in two stages: stage A
// reads request-line and header metadata and resolves the route; stage
// B reads the body according to the matched content type and size,
// either into memory or streamed to a file under the upload directory.
// Failures surface as *reqerr.Error; the parser never panics.
package reqparse

import (
	"bufio"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/httpd-core/rapid/internal/httprouter"
	"github.com/httpd-core/rapid/internal/message"
	"github.com/httpd-core/rapid/internal/netio"
	"github.com/httpd-core/rapid/internal/reqerr"
)

// supportedMethods is the closed set of recognized method keywords.
var supportedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "UPDATE": true,
}

const randomStemAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Limits bundles the size thresholds, upload directory and read timeout
// the parser works with; all are supplied by server.Config.
type Limits struct {
	// MaxPayloadBytes rejects any Content-Length above it with
	// reqerr.PayloadTooLarge.
	MaxPayloadBytes int64

	// TextualMemoryLimit is the Content-Length boundary below which a
	// textual body (text/plain, application/json, application/x-yaml)
	// is read into memory instead of streamed to disk. At the default
	// of 0 every textual body goes to disk.
	TextualMemoryLimit int64

	// UploadDir is the directory streamed (non-textual, or oversize
	// textual) bodies are written under. Created on demand.
	UploadDir string

	// ReadTimeout bounds every line and body read.
	ReadTimeout time.Duration
}

// Parse runs Stage A and Stage B over lr, using table to resolve the
// route. lr is owned by the caller (the connection driver) and reused
// across every request on a keep-alive connection, so buffered bytes
// never leak between requests. It returns the parsed Request together
// with its matched route, or a *reqerr.Error describing why parsing
// failed.
func Parse(lr *netio.LineReader, table *httprouter.Table, lim Limits) (*message.Request, *httprouter.Route, *reqerr.Error) {
	req, route, err := parseMetadata(lr, table, lim)
	if err != nil {
		return nil, nil, err
	}

	if err := readBody(lr.Conn(), lr.Buffered(), req, lim); err != nil {
		return nil, nil, err
	}

	return req, route, nil
}

func parseMetadata(lr *netio.LineReader, table *httprouter.Table, lim Limits) (*message.Request, *httprouter.Route, *reqerr.Error) {
	var requestLine string
	for {
		line, err := lr.ReadLine()
		if err != nil {
			return nil, nil, classifyReadErr(err)
		}
		if line != "" {
			requestLine = line
			break
		}
	}

	method, resource, proto, perr := parseRequestLine(requestLine)
	if perr != nil {
		return nil, nil, perr
	}

	path, query := splitResource(resource)

	req := &message.Request{
		Protocol: proto,
		Method:   method,
		Resource: path,
		Query:    query,
		Headers:  map[string]string{},
	}
	if addr := lr.Conn().RemoteAddr(); addr != nil {
		req.PeerAddress = addr.String()
	}

	for {
		line, err := lr.ReadLine()
		if err != nil {
			return nil, nil, classifyReadErr(err)
		}
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			continue // malformed header line: ignored, not fatal
		}
		req.Headers[k] = v
	}

	// Resource resolution comes first, regardless of whether the method
	// keyword is even recognized: an unknown resource wins over an
	// unrecognized method keyword, so "FOOBAR /nope HTTP/1.1" is
	// ResourceNotFound, not MethodNotSupported.
	route, params, methodAllowed, found := table.Match(path, method)
	if !found {
		return nil, nil, reqerr.Newf(reqerr.ResourceNotFound, "Resource %s not found.", path)
	}
	if !supportedMethods[method] {
		return nil, nil, reqerr.Newf(reqerr.MethodNotSupported, "Method %s not supported.", method)
	}
	if !methodAllowed {
		return nil, nil, reqerr.MethodNotAllowedError(method)
	}
	req.Params = params

	if method != "GET" {
		if err := attachContentHeaders(req, lim); err != nil {
			return nil, nil, err
		}
	}

	return req, route, nil
}

// attachContentHeaders validates and records Content-Length/Content-Type
// for non-GET requests.
func attachContentHeaders(req *message.Request, lim Limits) *reqerr.Error {
	if raw, ok := headerLookup(req.Headers, "Content-Length"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
		if err != nil {
			return reqerr.Newf(reqerr.InvalidContentLength, "Content-Length %q is not a valid unsigned integer.", raw)
		}
		length := int64(n)
		if length > lim.MaxPayloadBytes {
			return reqerr.Newf(reqerr.PayloadTooLarge, "Content-Length %d exceeds the configured maximum of %d bytes.", length, lim.MaxPayloadBytes)
		}
		req.ContentLength = &length
	}

	raw, ok := headerLookup(req.Headers, "Content-Type")
	if !ok {
		return reqerr.New(reqerr.ContentTypeRequired, "Content-Type header is required.")
	}
	ct, ok := message.ParseContentType(raw)
	if !ok {
		return reqerr.Newf(reqerr.ContentNotSupported, "Content-Type %q is not supported.", raw)
	}
	req.ContentType = &ct
	return nil
}

// readBody runs Stage B. GET requests never read a body.
func readBody(conn net.Conn, br *bufio.Reader, req *message.Request, lim Limits) *reqerr.Error {
	if req.Method == "GET" {
		return nil
	}
	if req.ContentLength == nil {
		// No body declared; nothing to read (e.g. a PUT with no payload).
		return nil
	}
	n := *req.ContentLength
	if n == 0 {
		empty := ""
		req.BodyText = &empty
		return nil
	}

	if req.ContentType.IsTextual() && n < lim.TextualMemoryLimit {
		buf, err := netio.ReadExact(conn, br, n, lim.ReadTimeout)
		if err != nil {
			return classifyReadErr(err)
		}
		if !utf8.Valid(buf) {
			return reqerr.New(reqerr.RequestDataNotUTF8, "request body is not valid UTF-8.")
		}
		s := string(buf)
		req.BodyText = &s
		return nil
	}

	path, werr := streamToDisk(conn, br, n, lim, *req.ContentType)
	if werr != nil {
		return werr
	}
	req.BodyFilePath = &path
	return nil
}

// streamToDisk writes exactly n bytes to a newly created file under
// lim.UploadDir, named by a random alphanumeric stem plus the extension
// for ct.
func streamToDisk(conn net.Conn, br *bufio.Reader, n int64, lim Limits, ct message.ContentType) (string, *reqerr.Error) {
	if err := os.MkdirAll(lim.UploadDir, 0o755); err != nil {
		return "", reqerr.Newf(reqerr.CannotWriteDataToDisk, "creating upload directory: %v", err)
	}

	name, err := randomFileName(ct)
	if err != nil {
		return "", reqerr.Newf(reqerr.CannotWriteDataToDisk, "generating upload file name: %v", err)
	}
	path := filepath.Join(lim.UploadDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", reqerr.Newf(reqerr.CannotWriteDataToDisk, "creating upload file: %v", err)
	}
	defer f.Close()

	if serr := netio.StreamExact(conn, br, f, n, lim.ReadTimeout); serr != nil {
		os.Remove(path)
		if rerr, ok := classifyStreamErr(serr); ok {
			return "", rerr
		}
		return "", reqerr.Newf(reqerr.CannotWriteDataToDisk, "writing upload body: %v", serr)
	}
	return path, nil
}

func randomFileName(ct message.ContentType) (string, error) {
	raw := make([]byte, 7)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	stem := make([]byte, 7)
	for i, b := range raw {
		stem[i] = randomStemAlphabet[int(b)%len(randomStemAlphabet)]
	}
	return string(stem) + ct.Extension(), nil
}

// parseRequestLine splits "METHOD SP RESOURCE SP PROTOCOL" and validates
// the protocol token.
func parseRequestLine(line string) (method, resource string, proto message.Protocol, rerr *reqerr.Error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", "", reqerr.New(reqerr.RequestNotHttp, "malformed request line.")
	}
	switch parts[2] {
	case string(message.HTTP10):
		proto = message.HTTP10
	case string(message.HTTP11):
		proto = message.HTTP11
	default:
		return "", "", "", reqerr.Newf(reqerr.RequestNotHttp, "unsupported protocol %q.", parts[2])
	}
	return parts[0], parts[1], proto, nil
}

// splitResource separates the path from an optional query string,
// parsing "k=v(&k=v)*" and silently skipping fragments without "=".
func splitResource(resource string) (path string, query map[string]string) {
	query = map[string]string{}
	path, qs, found := strings.Cut(resource, "?")
	if !found {
		return path, query
	}
	for _, frag := range strings.Split(qs, "&") {
		k, v, ok := strings.Cut(frag, "=")
		if !ok {
			continue
		}
		query[k] = v
	}
	return path, query
}

func headerLookup(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func classifyReadErr(err error) *reqerr.Error {
	switch {
	case err == netio.ErrTimedOut:
		return reqerr.New(reqerr.RequestTimedout, "timed out waiting for request data.")
	case err == netio.ErrClientDisconnected:
		return reqerr.New(reqerr.ClientDisconnected, "client disconnected.")
	default:
		return reqerr.Newf(reqerr.RequestReadError, "reading request: %v", err)
	}
}

func classifyStreamErr(err error) (*reqerr.Error, bool) {
	switch err {
	case netio.ErrTimedOut:
		return reqerr.New(reqerr.RequestTimedout, "timed out waiting for request body."), true
	case netio.ErrClientDisconnected:
		return reqerr.New(reqerr.ClientDisconnected, "client disconnected mid-body."), true
	default:
		return nil, false
	}
}
