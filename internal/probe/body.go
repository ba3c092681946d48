package probe

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

const maxBodySnippetBytes = 512 * 1024

// readBodySample performs spec.md §4.3 step 5: if the response's media
// type is absent, or suggests HTML/text/XML/JSON, read up to 512 KiB of
// body, decompressing per Content-Encoding (gzip/deflate/br) first; on
// decompression failure, fall back to the raw bytes. Decode as UTF-8 best
// effort via golang.org/x/net/html/charset.
func readBodySample(resp *http.Response) bodySample {
	defer resp.Body.Close()

	if !shouldSample(resp.Header.Get("Content-Type")) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySnippetBytes))
		return bodySample{}
	}

	limited := io.LimitReader(resp.Body, maxBodySnippetBytes)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return bodySample{}
	}

	decoded := decompress(resp.Header.Get("Content-Encoding"), raw)
	text := bestEffortUTF8(decoded, resp.Header.Get("Content-Type"))
	return bodySample{snippet: text}
}

func shouldSample(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	for _, kind := range []string{"html", "text/", "xml", "json"} {
		if strings.Contains(ct, kind) {
			return true
		}
	}
	return false
}

// decompress applies the transport decoding named by encoding. On any
// decompression error it returns the original raw bytes, per spec.md
// §4.3 step 5.
func decompress(encoding string, raw []byte) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(strings.NewReader(string(raw)))
		if err != nil {
			return raw
		}
		defer r.Close()
		out, err := io.ReadAll(io.LimitReader(r, maxBodySnippetBytes))
		if err != nil && len(out) == 0 {
			return raw
		}
		return out
	case "deflate":
		r := flate.NewReader(strings.NewReader(string(raw)))
		defer r.Close()
		out, err := io.ReadAll(io.LimitReader(r, maxBodySnippetBytes))
		if err != nil && len(out) == 0 {
			return raw
		}
		return out
	case "br":
		r := brotli.NewReader(strings.NewReader(string(raw)))
		out, err := io.ReadAll(io.LimitReader(r, maxBodySnippetBytes))
		if err != nil && len(out) == 0 {
			return raw
		}
		return out
	default:
		return raw
	}
}

// bestEffortUTF8 decodes body per its declared/sniffed charset, falling
// back to the raw bytes interpreted as UTF-8 on any failure.
func bestEffortUTF8(body []byte, contentType string) string {
	r, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return string(body)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(out)
}
