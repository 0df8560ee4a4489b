// Package message holds the shared Request/Response data model used
// across internal/reqparse, internal/respwrite, internal/connio, and
// server. Keeping these types in their own leaf package avoids import
// cycles between the pipeline stages that build and consume them.
package message

// Protocol is the HTTP version token from the request line.
type Protocol string

const (
	HTTP10 Protocol = "HTTP/1.0"
	HTTP11 Protocol = "HTTP/1.1"
)

// Request is a fully parsed HTTP request as handed to a route handler.
// Exactly one of BodyText or BodyFilePath is set when a body was present;
// both are nil for methods and content types with no body.
type Request struct {
	Protocol Protocol
	Method   string
	Resource string
	Query    map[string]string

	// Headers preserves the casing of keys as received on the wire. Use
	// Header for a case-insensitive lookup.
	Headers map[string]string

	ContentType   *ContentType
	ContentLength *int64

	BodyText     *string
	BodyFilePath *string

	PeerAddress string

	// Params holds the path captures extracted by the route table, e.g.
	// {"id": "5", "name": "rony"} for pattern /json/{id}/{name}.
	Params map[string]string
}

// Header looks up a header by name, case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for k, v := range r.Headers {
		if len(k) == len(name) && equalFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Response is what a route handler produces; internal/respwrite turns it
// into bytes on the wire. Exactly one of InlineBody or FilePath is
// typically set; a handler may set neither for a bodyless status such as
// 204 or 304.
type Response struct {
	StatusCode  int
	ContentType ContentType

	// ContentLength is computed by respwrite when nil; a handler only
	// needs to set it to override that computation.
	ContentLength *int64

	InlineBody *string

	// FilePath, when set, tells respwrite to stream the named file as
	// the body, using the bytecache package and conditional-GET (ETag).
	FilePath        *string
	FileDisplayName *string

	Headers   map[string]string
	KeepAlive bool
}

// NewResponse returns a Response with an initialized Headers map and the
// given status and content type, ready for a handler to fill in.
// KeepAlive defaults to true: the connection driver still only keeps the
// connection open when the client also asked for it, but a handler can
// force a close (e.g. after a fatal application error) by setting
// KeepAlive back to false.
func NewResponse(status int, ct ContentType) *Response {
	return &Response{StatusCode: status, ContentType: ct, Headers: map[string]string{}, KeepAlive: true}
}
