package wire

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Encoding is a negotiated content coding
type Encoding string

const (
	Identity Encoding = ""
	Brotli   Encoding = "br"
	Gzip     Encoding = "gzip"
)

// Content types
const (
	ContentTypeThrift = "application/x-thrift"
	ContentTypeJSON   = "application/json"
	ContentTypeStream = "application/octet-stream"
)

// Negotiate picks the response coding from an Accept-Encoding header,
// preferring brotli, then gzip. Codings with q=0 are refused.
func Negotiate(acceptEncoding string) Encoding {
	var br, gz bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		fields := strings.Split(part, ";")
		name := strings.ToLower(strings.TrimSpace(fields[0]))
		if refused(fields[1:]) {
			continue
		}
		switch name {
		case "br":
			br = true
		case "gzip", "x-gzip":
			gz = true
		}
	}
	switch {
	case br:
		return Brotli
	case gz:
		return Gzip
	}
	return Identity
}

func refused(params []string) bool {
	for _, p := range params {
		p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
		if p == "q=0" || p == "q=0.0" || p == "q=0.00" || p == "q=0.000" {
			return true
		}
	}
	return false
}

// WantsJSON reports whether an Accept header asks for JSON rather than Thrift
func WantsJSON(accept string) bool {
	return strings.Contains(strings.ToLower(accept), ContentTypeJSON)
}

// Compress encodes data with enc
func Compress(enc Encoding, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch enc {
	case Identity:
		return data, nil
	case Brotli:
		bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := bw.Write(data); err != nil {
			return nil, fmt.Errorf("brotli write: %w", err)
		}
		if err := bw.Close(); err != nil {
			return nil, fmt.Errorf("brotli close: %w", err)
		}
	case Gzip:
		gw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := gw.Write(data); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	return buf.Bytes(), nil
}
