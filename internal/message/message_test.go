package message

import "testing"

func TestParseContentType_RoundTrips(t *testing.T) {
	for _, mime := range []string{
		"text/plain", "application/json", "application/x-yaml",
		"image/png", "application/octet-stream",
	} {
		ct, ok := ParseContentType(mime)
		if !ok {
			t.Fatalf("ParseContentType(%q) not found", mime)
		}
		if got := ct.MIME(); got != mime {
			t.Errorf("MIME() = %q, want %q", got, mime)
		}
	}
}

func TestParseContentType_UnknownIsRejected(t *testing.T) {
	if _, ok := ParseContentType("application/x-bogus"); ok {
		t.Fatal("expected unknown MIME to be rejected")
	}
}

func TestParseContentType_IsCaseInsensitive(t *testing.T) {
	ct, ok := ParseContentType("APPLICATION/JSON")
	if !ok || ct != ApplicationJSON {
		t.Fatalf("expected case-insensitive match to ApplicationJSON, got %v, %v", ct, ok)
	}
}

func TestContentType_Extension(t *testing.T) {
	if ext := ApplicationPDF.Extension(); ext != ".pdf" {
		t.Errorf("Extension() = %q, want .pdf", ext)
	}
}

func TestContentType_IsTextual(t *testing.T) {
	textual := []ContentType{TextPlain, ApplicationJSON, ApplicationYAML}
	for _, ct := range textual {
		if !ct.IsTextual() {
			t.Errorf("%v should be textual", ct)
		}
	}
	if ImagePNG.IsTextual() {
		t.Error("ImagePNG should not be textual")
	}
}

func TestRequest_HeaderIsCaseInsensitive(t *testing.T) {
	r := &Request{Headers: map[string]string{"Content-Type": "application/json"}}
	v, ok := r.Header("content-type")
	if !ok || v != "application/json" {
		t.Fatalf("Header lookup failed: %v %v", v, ok)
	}
}

func TestNewResponse_InitializesHeaders(t *testing.T) {
	resp := NewResponse(200, TextPlain)
	resp.Headers["X-Test"] = "1"
	if resp.Headers["X-Test"] != "1" {
		t.Fatal("Headers map not usable")
	}
}
