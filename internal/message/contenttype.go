package message

import "strings"

// ContentType is the closed enumeration of recognized request/response
// content types. Unknown MIME values fail to parse into one of these
// (415 Unsupported Media Type, reqerr.ContentNotSupported).
type ContentType int

const (
	TextPlain ContentType = iota
	ApplicationJSON
	ApplicationXML
	ApplicationYAML
	ImagePNG
	ImageJPEG
	ImageSVG
	ImageWebP
	TextCSV
	ApplicationPDF
	ApplicationZip
	ApplicationGzip
	ApplicationMSDownload
	AudioMPEG
	AudioWAV
	VideoMP4
	ApplicationXLSX
	ApplicationPPTX
	ApplicationDOCX
	ApplicationOctetStream
)

// mimeTable is the closed set of recognized content types.
var mimeTable = []struct {
	ct        ContentType
	mime      string
	extension string
}{
	{TextPlain, "text/plain", ".txt"},
	{ApplicationJSON, "application/json", ".json"},
	{ApplicationXML, "application/xml", ".xml"},
	{ApplicationYAML, "application/x-yaml", ".yaml"},
	{ImagePNG, "image/png", ".png"},
	{ImageJPEG, "image/jpeg", ".jpeg"},
	{ImageSVG, "image/svg+xml", ".svg"},
	{ImageWebP, "image/webp", ".webp"},
	{TextCSV, "text/csv", ".csv"},
	{ApplicationPDF, "application/pdf", ".pdf"},
	{ApplicationZip, "application/zip", ".zip"},
	{ApplicationGzip, "application/gzip", ".gz"},
	{ApplicationMSDownload, "application/x-msdownload", ".exe"},
	{AudioMPEG, "audio/mpeg", ".mp3"},
	{AudioWAV, "audio/wav", ".wav"},
	{VideoMP4, "video/mp4", ".mp4"},
	{ApplicationXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	{ApplicationPPTX, "application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
	{ApplicationDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	{ApplicationOctetStream, "application/octet-stream", ""},
}

// ParseContentType maps a (lowercased) MIME value to its ContentType.
// ok=false means the value is not in the closed set.
func ParseContentType(mime string) (ContentType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, row := range mimeTable {
		if row.mime == mime {
			return row.ct, true
		}
	}
	return 0, false
}

// MIME returns the canonical MIME string for ct.
func (ct ContentType) MIME() string {
	for _, row := range mimeTable {
		if row.ct == ct {
			return row.mime
		}
	}
	return "application/octet-stream"
}

// Extension returns the file extension (including the leading dot) used
// when streaming an upload of this content type to disk.
func (ct ContentType) Extension() string {
	for _, row := range mimeTable {
		if row.ct == ct {
			return row.extension
		}
	}
	return ".bin"
}

// IsTextual reports whether ct is one of the three types eligible for the
// in-memory (rather than streamed-to-disk) body path: text/plain,
// application/json, application/x-yaml.
func (ct ContentType) IsTextual() bool {
	return ct == TextPlain || ct == ApplicationJSON || ct == ApplicationYAML
}
